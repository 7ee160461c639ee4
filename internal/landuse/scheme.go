package landuse

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/vergauwenthomas/VLINDER/internal/raster"
)

const (
	// UnmappedLabel collects raster codes missing in the class table of a scheme.
	UnmappedLabel = "unmapped"

	// OtherAggregate collects labels not assigned to any aggregate class.
	OtherAggregate = "other"
)

// Class maps one raster code to a semantic label.
type Class struct {
	Code  int
	Label string
}

// Aggregate groups semantic labels into one aggregate class (e.g. green).
type Aggregate struct {
	Name   string
	Labels []string
}

// Split assigns a weight of a label's fraction to an aggregate class.
type Split struct {
	Aggregate string
	Weight    float64
}

// Fractions maps a label (or aggregate name) to its fraction in [0,1].
type Fractions map[string]float64

// Sum returns the sum of all fractions in label order.
func (f Fractions) Sum(labels []string) float64 {
	values := make([]float64, 0, len(labels))
	for _, label := range labels {
		values = append(values, f[label])
	}
	return floats.Sum(values)
}

/*
Scheme is the classification of a land cover dataset: ordered raw code to label mapping,
aggregation of labels into aggregate classes, and an explicit override table for labels
whose fraction is split over several aggregates.
*/
type Scheme struct {
	Name       string
	Classes    []Class
	Aggregates []Aggregate
	Splits     map[string][]Split
}

/*
Validate checks the scheme for duplicate codes, unknown labels and split weights not
summing up to 1.
*/
func (s Scheme) Validate() error {
	if len(s.Classes) == 0 {
		return fmt.Errorf("scheme [%s] without classes: %w", s.Name, raster.ErrConfiguration)
	}

	codes := make(map[int]bool)
	labels := make(map[string]bool)
	for _, class := range s.Classes {
		if codes[class.Code] {
			return fmt.Errorf("scheme [%s]: duplicate class code %d: %w", s.Name, class.Code, raster.ErrConfiguration)
		}
		if class.Label == "" || class.Label == UnmappedLabel {
			return fmt.Errorf("scheme [%s]: invalid label [%s] for class code %d: %w", s.Name, class.Label, class.Code, raster.ErrConfiguration)
		}
		codes[class.Code] = true
		labels[class.Label] = true
	}
	labels[UnmappedLabel] = true

	assigned := make(map[string]string)
	aggregates := make(map[string]bool)
	for _, aggregate := range s.Aggregates {
		if aggregate.Name == "" || aggregate.Name == OtherAggregate || aggregates[aggregate.Name] {
			return fmt.Errorf("scheme [%s]: invalid or duplicate aggregate [%s]: %w", s.Name, aggregate.Name, raster.ErrConfiguration)
		}
		aggregates[aggregate.Name] = true
		for _, label := range aggregate.Labels {
			if !labels[label] {
				return fmt.Errorf("scheme [%s]: aggregate [%s] references unknown label [%s]: %w", s.Name, aggregate.Name, label, raster.ErrConfiguration)
			}
			if previous, ok := assigned[label]; ok {
				return fmt.Errorf("scheme [%s]: label [%s] assigned to aggregates [%s] and [%s]: %w", s.Name, label, previous, aggregate.Name, raster.ErrConfiguration)
			}
			assigned[label] = aggregate.Name
		}
	}

	for label, splits := range s.Splits {
		if !labels[label] {
			return fmt.Errorf("scheme [%s]: split of unknown label [%s]: %w", s.Name, label, raster.ErrConfiguration)
		}
		if _, ok := assigned[label]; ok {
			return fmt.Errorf("scheme [%s]: label [%s] is both split and assigned to an aggregate: %w", s.Name, label, raster.ErrConfiguration)
		}
		total := 0.0
		for _, split := range splits {
			if !aggregates[split.Aggregate] {
				return fmt.Errorf("scheme [%s]: split of [%s] to unknown aggregate [%s]: %w", s.Name, label, split.Aggregate, raster.ErrConfiguration)
			}
			if split.Weight < 0 {
				return fmt.Errorf("scheme [%s]: negative split weight for [%s]: %w", s.Name, label, raster.ErrConfiguration)
			}
			total += split.Weight
		}
		if math.Abs(total-1) > 1e-9 {
			return fmt.Errorf("scheme [%s]: split weights of [%s] sum up to %g instead of 1: %w", s.Name, label, total, raster.ErrConfiguration)
		}
	}

	return nil
}

// Labels returns the fixed, ordered label set of the scheme (unmapped last).
func (s Scheme) Labels() []string {
	var labels []string
	for _, class := range s.Classes {
		if !slices.Contains(labels, class.Label) {
			labels = append(labels, class.Label)
		}
	}
	return append(labels, UnmappedLabel)
}

// AggregateNames returns the fixed, ordered aggregate set of the scheme (other last).
func (s Scheme) AggregateNames() []string {
	names := make([]string, 0, len(s.Aggregates)+1)
	for _, aggregate := range s.Aggregates {
		names = append(names, aggregate.Name)
	}
	return append(names, OtherAggregate)
}

/*
Fractions normalizes per-code pixel counts to label fractions.
All labels of the scheme are present (zero if not sampled). Codes without a class are
counted as unmapped. The total is accumulated in a fixed order so repeated runs yield
identical values. A zero total yields all-zero fractions.
*/
func (s Scheme) Fractions(counts map[int]float64) (Fractions, float64) {
	labelCounts := make(map[string]float64)
	known := make(map[int]bool)
	for _, class := range s.Classes {
		known[class.Code] = true
		labelCounts[class.Label] += counts[class.Code]
	}

	unmappedCodes := make([]int, 0)
	for code := range counts {
		if !known[code] {
			unmappedCodes = append(unmappedCodes, code)
		}
	}
	sort.Ints(unmappedCodes)
	for _, code := range unmappedCodes {
		labelCounts[UnmappedLabel] += counts[code]
	}

	labels := s.Labels()
	values := make([]float64, len(labels))
	for i, label := range labels {
		values[i] = labelCounts[label]
	}
	total := floats.Sum(values)

	fractions := make(Fractions, len(labels))
	for i, label := range labels {
		if total > 0 {
			fractions[label] = values[i] / total
		} else {
			fractions[label] = 0
		}
	}
	return fractions, total
}

/*
Aggregate sums label fractions into aggregate classes.
Labels with an explicit split contribute their weighted fraction to each split aggregate,
labels without aggregate go to OtherAggregate.
*/
func (s Scheme) Aggregate(fractions Fractions) Fractions {
	assigned := make(map[string]string)
	for _, aggregate := range s.Aggregates {
		for _, label := range aggregate.Labels {
			assigned[label] = aggregate.Name
		}
	}

	result := make(Fractions)
	for _, name := range s.AggregateNames() {
		result[name] = 0
	}
	for _, label := range s.Labels() {
		fraction := fractions[label]
		if splits, ok := s.Splits[label]; ok {
			for _, split := range splits {
				result[split.Aggregate] += fraction * split.Weight
			}
			continue
		}
		if name, ok := assigned[label]; ok {
			result[name] += fraction
			continue
		}
		result[OtherAggregate] += fraction
	}
	return result
}

/*
LabelOf maps a raw code to its label (UnmappedLabel for unknown codes).
*/
func (s Scheme) LabelOf(code int) string {
	for _, class := range s.Classes {
		if class.Code == code {
			return class.Label
		}
	}
	return UnmappedLabel
}
