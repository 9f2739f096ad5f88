package estimate

import (
	"math"
	"strings"
)

// Detail selects the fidelity mode for image inputs.
type Detail string

const (
	DetailLow  Detail = "low"
	DetailHigh Detail = "high"
	DetailAuto Detail = "auto"
)

const (
	patchSize  = 32
	maxPatches = 1536

	tileSize            = 512
	tileLongSideMax     = 2048
	tileShortSideTarget = 768
)

// patchMultipliers covers models billed per 32px patch.
var patchMultipliers = map[string]float64{
	"gpt-4.1-mini": 1.62,
	"gpt-4.1-nano": 2.46,
	"o4-mini":      1.72,
}

type tileCost struct {
	base int64
	tile int64
}

// tileCosts covers models billed as a base cost plus 512px tiles.
var tileCosts = map[string]tileCost{
	"gpt-4o":      {base: 85, tile: 170},
	"gpt-4o-mini": {base: 2833, tile: 5667},
	"gpt-4.1":     {base: 85, tile: 170},
	"gpt-4-turbo": {base: 85, tile: 170},
	"o1":          {base: 75, tile: 150},
	"o3":          {base: 75, tile: 150},
}

// ImageTokens returns the predicted token cost of an image input for the
// given model and detail mode. Unknown models fall back to an area-based
// approximation, which is uncalibrated against real provider billing.
func ImageTokens(model string, width, height int, detail Detail) int64 {
	if width <= 0 || height <= 0 {
		return 0
	}

	patchKey, patchOK := longestPrefix(model, patchKeys())
	tileKey, tileOK := longestPrefix(model, tileKeys())

	// Dated snapshots ("gpt-4o-mini-2024-07-18") resolve by longest
	// matching prefix across both cost tables.
	switch {
	case patchOK && (!tileOK || len(patchKey) >= len(tileKey)):
		return patchTokens(width, height, patchMultipliers[patchKey])
	case tileOK:
		return tileTokens(width, height, detail, tileCosts[tileKey])
	default:
		return int64(math.Ceil(float64(width*height) / (patchSize * patchSize)))
	}
}

func patchKeys() []string {
	keys := make([]string, 0, len(patchMultipliers))
	for k := range patchMultipliers {
		keys = append(keys, k)
	}
	return keys
}

func tileKeys() []string {
	keys := make([]string, 0, len(tileCosts))
	for k := range tileCosts {
		keys = append(keys, k)
	}
	return keys
}

func longestPrefix(model string, keys []string) (string, bool) {
	best := ""
	for _, k := range keys {
		if strings.HasPrefix(model, k) && len(k) > len(best) {
			best = k
		}
	}
	return best, best != ""
}

// patchTokens tiles the image into 32px patches. Images over the patch
// budget are downscaled preserving aspect ratio, then re-aligned to a
// whole patch grid before counting.
func patchTokens(width, height int, multiplier float64) int64 {
	fw, fh := float64(width), float64(height)

	patches := math.Ceil(fw/patchSize) * math.Ceil(fh/patchSize)
	if patches > maxPatches {
		shrink := math.Sqrt(float64(maxPatches) * patchSize * patchSize / (fw * fh))
		fw, fh = fw*shrink, fh*shrink

		align := math.Floor(fw/patchSize) / (fw / patchSize)
		fw, fh = fw*align, fh*align

		patches = math.Ceil(fw/patchSize) * math.Ceil(fh/patchSize)
		if patches > maxPatches {
			patches = maxPatches
		}
	}

	return int64(math.Round(patches * multiplier))
}

// tileTokens implements the base-plus-tiles model. Low detail is the base
// cost regardless of dimensions. High (and auto) detail resizes in two
// stages: bound the longer side to 2048, then bring the shorter side to
// 768, and counts 512px tiles over the result.
func tileTokens(width, height int, detail Detail, c tileCost) int64 {
	if detail == DetailLow {
		return c.base
	}

	fw, fh := float64(width), float64(height)

	if long := math.Max(fw, fh); long > tileLongSideMax {
		scale := tileLongSideMax / long
		fw, fh = fw*scale, fh*scale
	}
	if short := math.Min(fw, fh); short > tileShortSideTarget {
		scale := tileShortSideTarget / short
		fw, fh = fw*scale, fh*scale
	}

	tiles := int64(math.Ceil(fw/tileSize) * math.Ceil(fh/tileSize))
	return c.base + tiles*c.tile
}
