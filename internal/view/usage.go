package view

import (
	"sort"
	"time"
)

const unknownLabel = "unknown"

// HourBucket aggregates prompt context usage over one hour.
type HourBucket struct {
	Start   int64   `json:"start"`
	Prompts int     `json:"prompts"`
	Average float64 `json:"average"`
	Max     float64 `json:"max"`
}

// ContextUsagePerHour buckets the last hours hours of prompts by hour,
// oldest first. The newest bucket is the one containing now; hours with no
// prompts are present with zero counts.
func (v *View) ContextUsagePerHour(hours int) []HourBucket {
	if hours <= 0 {
		return nil
	}
	hourMs := time.Hour.Milliseconds()
	current := v.now.Truncate(time.Hour).UnixMilli()
	first := current - int64(hours-1)*hourMs
	buckets := make([]HourBucket, hours)
	sums := make([]float64, hours)
	for i := range buckets {
		buckets[i].Start = first + int64(i)*hourMs
	}
	for _, p := range v.snap.Prompts {
		if p.Timestamp < first || p.Timestamp >= current+hourMs {
			continue
		}
		i := (p.Timestamp - first) / hourMs
		b := &buckets[i]
		b.Prompts++
		b.Max = max(b.Max, p.ContextUsage)
		sums[i] += p.ContextUsage
	}
	for i := range buckets {
		if buckets[i].Prompts > 0 {
			buckets[i].Average = sums[i] / float64(buckets[i].Prompts)
		}
	}
	return buckets
}

// Count is one labeled tally.
type Count struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Combination tallies one (model, mode) pair.
type Combination struct {
	Model string `json:"model"`
	Mode  string `json:"mode"`
	Count int    `json:"count"`
}

// ModelUsage counts prompts per model, per mode and per (model, mode).
type ModelUsage struct {
	Models       []Count       `json:"models"`
	Modes        []Count       `json:"modes"`
	Combinations []Combination `json:"combinations"`
}

func (v *View) ModelUsage() ModelUsage {
	models := make(map[string]int)
	modes := make(map[string]int)
	combos := make(map[[2]string]int)
	for _, p := range v.snap.Prompts {
		m, mode := p.ModelName, p.Mode
		if m == "" {
			m = unknownLabel
		}
		if mode == "" {
			mode = unknownLabel
		}
		models[m]++
		modes[mode]++
		combos[[2]string{m, mode}]++
	}
	usage := ModelUsage{Models: sortedCounts(models), Modes: sortedCounts(modes)}
	for k, n := range combos {
		usage.Combinations = append(usage.Combinations, Combination{Model: k[0], Mode: k[1], Count: n})
	}
	sort.Slice(usage.Combinations, func(i, j int) bool {
		a, b := usage.Combinations[i], usage.Combinations[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if a.Model != b.Model {
			return a.Model < b.Model
		}
		return a.Mode < b.Mode
	})
	return usage
}

func sortedCounts(m map[string]int) []Count {
	out := make([]Count, 0, len(m))
	for name, n := range m {
		out = append(out, Count{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}
