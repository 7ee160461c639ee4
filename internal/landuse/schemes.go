package landuse

// Default class tables of the VLINDER land cover datasets.

/*
BBKScheme is the Flemish land cover map (Bodemgebruikskaart, 1 m, EPSG:31370).
*/
func BBKScheme() Scheme {
	return Scheme{
		Name: "BBK",
		Classes: []Class{
			{1, "building"},
			{2, "road"},
			{3, "rest_impervious"},
			{4, "rail_road"},
			{5, "water"},
			{6, "rest_non_impervious"},
			{7, "crop_land"},
			{8, "gras_shrub"},
			{9, "tree"},
			{10, "gras_shrub_agriculture"},
			{11, "gras_shrub_road"},
			{12, "trees_road"},
			{13, "gras_shrub_water"},
			{14, "trees_water"},
		},
		Aggregates: []Aggregate{
			{Name: "green", Labels: []string{"tree", "rest_non_impervious", "gras_shrub", "crop_land",
				"gras_shrub_agriculture", "gras_shrub_road", "gras_shrub_water", "trees_water", "trees_road"}},
			{Name: "impervious", Labels: []string{"road", "rest_impervious", "rail_road", "building"}},
			{Name: "water", Labels: []string{"water"}},
		},
	}
}

/*
ESMScheme is the European Settlement Map (10 m, EPSG:3035). Built-up open space is
ambiguous and split half green, half impervious.
*/
func ESMScheme() Scheme {
	return Scheme{
		Name: "ESM",
		Classes: []Class{
			{0, "no_data"},
			{1, "water"},
			{2, "railways"},
			{10, "nbu_area-open_space"},
			{15, "nbu_area-streets"},
			{20, "nbu_area-green_ndvi"},
			{25, "nbu_area-street_green_ndvi"},
			{30, "bu_area-open_space"},
			{35, "bu_area-streets"},
			{40, "bu_area-green_ndvi"},
			{41, "bu_area-green_ua"},
			{45, "bu_area-street_green_ndvi"},
			{50, "bu_buildings"},
		},
		Aggregates: []Aggregate{
			{Name: "green", Labels: []string{"nbu_area-open_space", "nbu_area-green_ndvi", "nbu_area-street_green_ndvi",
				"bu_area-green_ndvi", "bu_area-green_ua", "bu_area-street_green_ndvi"}},
			{Name: "impervious", Labels: []string{"railways", "nbu_area-streets", "bu_area-streets", "bu_buildings"}},
			{Name: "water", Labels: []string{"water"}},
		},
		Splits: map[string][]Split{
			"bu_area-open_space": {
				{Aggregate: "green", Weight: 0.5},
				{Aggregate: "impervious", Weight: 0.5},
			},
		},
	}
}

/*
S2GLCScheme is the Sentinel-2 Global Land Cover map of Europe 2017 (10 m, EPSG:3035).
Water, clouds and no data have no aggregate class.
*/
func S2GLCScheme() Scheme {
	return Scheme{
		Name: "S2GLC",
		Classes: []Class{
			{0, "clouds"},
			{62, "Artificial_surfaces_and_constructions"},
			{73, "Cultivated areas"},
			{75, "Vineyards"},
			{82, "Broadleaf tree cover"},
			{83, "Coniferious tree cover"},
			{102, "Herbaceous vegetation"},
			{103, "Moors and heathland"},
			{104, "Sclerophyllous vegetation"},
			{105, "Marshes"},
			{106, "Peatbogs"},
			{121, "Natural material surfaces"},
			{123, "Permanent snow covered surfaces"},
			{162, "Water"},
			{255, "No data"},
		},
		Aggregates: []Aggregate{
			{Name: "green", Labels: []string{"Cultivated areas", "Vineyards", "Broadleaf tree cover", "Coniferious tree cover",
				"Herbaceous vegetation", "Moors and heathland", "Sclerophyllous vegetation",
				"Marshes", "Peatbogs", "Natural material surfaces", "Permanent snow covered surfaces"}},
			{Name: "impervious", Labels: []string{"Artificial_surfaces_and_constructions"}},
		},
	}
}

/*
LCZScheme is the European local climate zone map (EPSG:3035). The sea is coded 0.
*/
func LCZScheme() Scheme {
	return Scheme{
		Name: "LCZ",
		Classes: []Class{
			{0, "LCZ-G, water"},
			{1, "LCZ-1, compact highrise"},
			{2, "LCZ-2, compact midrise"},
			{3, "LCZ-3, compact lowrise"},
			{4, "LCZ-4, open highrise"},
			{5, "LCZ-5, open midrise"},
			{6, "LCZ-6, open lowrise"},
			{7, "LCZ-7, lightweight lowrise"},
			{8, "LCZ-8, large lowrise"},
			{9, "LCZ-9, sparsely built"},
			{10, "LCZ-10, heavy industry"},
			{11, "LCZ-A, dense trees"},
			{12, "LCZ-B, scattered trees"},
			{13, "LCZ-C, bush, scrub"},
			{14, "LCZ-D, low plants"},
			{15, "LCZ-E, bare rock or paved"},
			{16, "LCZ-F, bare soil or sand"},
			{17, "LCZ-G, water"},
		},
	}
}
