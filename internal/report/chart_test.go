package report

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/momaliii/kamal-bot-old/internal/ledger"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func TestChartRendererPNG(t *testing.T) {
	t.Parallel()
	points := []ledger.DailyTotal{
		{Date: "2026-08-30", Total: decimal.RequireFromString("10")},
		{Date: "2026-08-31", Total: decimal.RequireFromString("7.5")},
		{Date: "2026-09-01", Total: decimal.RequireFromString("-2")},
	}

	img, err := NewChartRenderer().Render(points)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.HasPrefix(img, pngMagic) {
		t.Fatalf("output is not a PNG (%d bytes)", len(img))
	}
}

func TestChartRendererSinglePoint(t *testing.T) {
	t.Parallel()
	points := []ledger.DailyTotal{{Date: "2026-09-01", Total: decimal.RequireFromString("5")}}

	img, err := NewChartRenderer().Render(points)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.HasPrefix(img, pngMagic) {
		t.Fatalf("output is not a PNG (%d bytes)", len(img))
	}
}

func TestChartRendererNoPoints(t *testing.T) {
	t.Parallel()
	if _, err := NewChartRenderer().Render(nil); err == nil {
		t.Fatal("Render with no points should fail")
	}
}

func TestChartRendererBadDate(t *testing.T) {
	t.Parallel()
	points := []ledger.DailyTotal{{Date: "yesterday", Total: decimal.Zero}}
	if _, err := NewChartRenderer().Render(points); err == nil {
		t.Fatal("Render with unparsable date should fail")
	}
}
