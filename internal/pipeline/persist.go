package pipeline

import (
	"context"
	"maps"
	"slices"

	"github.com/vergauwenthomas/VLINDER/internal/store"
)

// StoreSaver saves station results in the results database.
type StoreSaver struct {
	Store *store.Store
}

// Save implements ResultSaver.
func (s StoreSaver) Save(ctx context.Context, result StationResult) error {
	station, fractions := storeRows(result)
	return s.Store.SaveStation(ctx, station, fractions)
}

/*
storeRows converts a station result into database rows: one class row per label and one
aggregate row per aggregate class for every buffer radius.
*/
func storeRows(result StationResult) (store.StationRow, []store.FractionRow) {
	station := store.StationRow{
		Station:     result.Station.ID,
		Height:      result.Height,
		SVF:         result.SVF,
		LCZ:         result.LCZ,
		LCZOverride: result.LCZOverride,
		Failure:     result.FailureText(),
	}

	var fractions []store.FractionRow
	for _, record := range result.Landuse {
		for _, label := range record.Labels {
			fractions = append(fractions, store.FractionRow{
				Station: record.Station, Radius: record.Radius, Dataset: record.Dataset,
				Kind: store.KindClass, Label: label, Fraction: record.Fractions[label],
			})
		}
		for _, name := range slices.Sorted(maps.Keys(record.Aggregates)) {
			fractions = append(fractions, store.FractionRow{
				Station: record.Station, Radius: record.Radius, Dataset: record.Dataset,
				Kind: store.KindAggregate, Label: name, Fraction: record.Aggregates[name],
			})
		}
	}
	return station, fractions
}
