package browser

import (
	"context"
	"math/rand"
	"time"

	"github.com/chromedp/chromedp"
)

// humanize performs the anti-bot hook (§4.3): a short burst of 3-6 steps,
// each a mouse move to a random point, a light scroll, or nothing, bounded
// to 1-3s and bounded by ctx. It sends no key presses. Every step is
// catch-and-swallow —
// a blocked or erroring step only ends the hook early, never the caller.
// Translated from the pack's Bezier-curve mouse humanizer into chromedp's
// action-list idiom (no page handle to hold state between calls).
func humanize(ctx context.Context) {
	budget := time.Duration(1000+rand.Intn(2000)) * time.Millisecond
	deadlineCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	steps := 3 + rand.Intn(4)
	for i := 0; i < steps; i++ {
		select {
		case <-deadlineCtx.Done():
			return
		default:
		}

		if err := chromedp.Run(deadlineCtx, humanizeStep()); err != nil {
			return
		}
	}
}

// humanizeStep returns one randomly-chosen cheap interaction: a mouse
// move to a random viewport point, a brief scroll, or nothing (so not
// every step touches the page).
func humanizeStep() chromedp.Action {
	switch rand.Intn(3) {
	case 0:
		x, y := float64(40+rand.Intn(900)), float64(40+rand.Intn(500))
		return chromedp.MouseEvent("mouseMoved", x, y)
	case 1:
		return chromedp.Evaluate(`window.scrollBy(0, 120 + Math.floor(Math.random()*240))`, nil)
	default:
		return chromedp.ActionFunc(func(context.Context) error { return nil })
	}
}
