package provider

import (
	"context"
	"testing"
)

const streamDetailHTML = `
<html><head>
<meta itemprop="uploadDate" content="2022-07-15">
<meta property="og:image" content="https://stream.example/images/poster.jpg">
</head><body>
<h1 class="video-title">A Fine Video | StreamSite</h1>
<div class="video-description">A description of the video.</div>
<span class="video-rating" data-score="3.2"></span>
<ul class="video-performers"><li><a>Performer One</a></li></ul>
<ul class="video-genres"><li><a>Genre A</a></li></ul>
<ul class="video-tags"><li><a>tag1</a></li><li><a>tag2</a></li></ul>
<span class="video-studio"><a>Studio X</a></span>
<div class="video-thumbnails"><img data-src="/images/t1.jpg"><img data-src="/images/t2.jpg"></div>
</body></html>`

const streamSearchJSON = `{"results":[
  {"id":"123456","title":"Hit One","thumbUrl":"https://stream.example/images/hit1.jpg","path":"https://stream.example/videos/123456"},
  {"id":"234567","title":"Hit Two","thumbUrl":"https://stream.example/images/hit2.jpg","path":""},
  {"id":"345678","title":"Hit Three","thumbUrl":"https://stream.example/images/hit3.jpg","path":"/videos/345678"}
]}`

func newTestStream(html string, jsonBody []byte) *Stream {
	site := StreamSite{Name: "stream", BaseURL: "https://stream.example"}
	client := &fakeClient{
		htmlByURL: map[string]string{"https://stream.example/videos/123456": html},
		jsonByURL: map[string][]byte{"https://stream.example/api/search?q=fine&limit=12": jsonBody},
	}
	return NewStream(site, client)
}

func TestStreamTryParseID(t *testing.T) {
	p := newTestStream("", nil)
	cases := []struct {
		input string
		id    string
		ok    bool
	}{
		{"123456", "123456", true},
		{"https://stream.example/videos/123456", "123456", true},
		{"12", "", false},
		{"abcdef", "", false},
	}
	for _, tc := range cases {
		id, ok := p.TryParseID(tc.input)
		if id != tc.id || ok != tc.ok {
			t.Errorf("TryParseID(%q) = (%q, %v), want (%q, %v)", tc.input, id, ok, tc.id, tc.ok)
		}
	}
}

func TestStreamFetchDetailParsesFields(t *testing.T) {
	p := newTestStream(streamDetailHTML, nil)
	md, err := p.FetchDetail(context.Background(), "https://stream.example/videos/123456")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if md == nil {
		t.Fatal("expected non-nil metadata")
	}
	if md.Title != "A Fine Video" {
		t.Errorf("Title = %q", md.Title)
	}
	if md.ReleaseDate == nil || md.ReleaseDate.Year() != 2022 {
		t.Errorf("ReleaseDate = %v, want 2022", md.ReleaseDate)
	}
	if md.Year == nil || *md.Year != 2022 {
		t.Errorf("Year = %v, want derived 2022", md.Year)
	}
	if md.Rating == nil || *md.Rating != 3.2 {
		t.Errorf("Rating = %v, want 3.2", md.Rating)
	}
	if len(md.People) != 1 || md.People[0].Type != PersonActor {
		t.Errorf("People = %v", md.People)
	}
	if len(md.Genres) != 1 || len(md.Tags) != 2 || len(md.Studios) != 1 {
		t.Errorf("Genres/Tags/Studios = %v/%v/%v", md.Genres, md.Tags, md.Studios)
	}
	if md.Primary != "https://stream.example/images/poster.jpg" {
		t.Errorf("Primary = %q", md.Primary)
	}
	if len(md.Thumbnails) != 2 {
		t.Errorf("Thumbnails = %v, want 2", md.Thumbnails)
	}
}

func TestStreamSearchMapsHitsAndDropsRelativeDetailURLs(t *testing.T) {
	p := newTestStream("", []byte(streamSearchJSON))
	hits, err := p.Search(context.Background(), "fine", 12)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits[0].DetailURL != "https://stream.example/videos/123456" || hits[0].Title != "Hit One" {
		t.Errorf("hits[0] = %+v", hits[0])
	}
	if hits[1].DetailURL != "https://stream.example/videos/234567" {
		t.Errorf("hits[1].DetailURL = %q, want built from id when path is empty", hits[1].DetailURL)
	}
}

func TestStreamFetchDetailReturnsNilOnNonProductPage(t *testing.T) {
	p := newTestStream("<html><body><p>nope</p></body></html>", nil)
	md, err := p.FetchDetail(context.Background(), "https://stream.example/videos/123456")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if md != nil {
		t.Errorf("expected nil metadata, got %+v", md)
	}
}
