package rankboard

// DefaultSeed returns the built-in entities the simulator starts with: seven
// well-known sites with five samples per series, values in billions.
//
// Every call returns fresh slices.
func DefaultSeed() []Record {
	labels := func() []string { return []string{"", "", "", "", "Now"} }
	site := func(name, domain string, access, search, transaction, interaction []float64) Record {
		return Record{
			Name: name,
			Logo: "https://logo.clearbit.com/" + domain,
			Series: map[string][]float64{
				"access":      access,
				"search":      search,
				"transaction": transaction,
				"interaction": interaction,
			},
			Labels: labels(),
		}
	}

	return []Record{
		site("Google", "google.com",
			[]float64{3.2, 3.3, 3.4, 3.5, 3.2},
			[]float64{16.1, 16.2, 16.3, 16.4, 16.1},
			[]float64{0.89, 0.90, 0.91, 0.92, 0.89},
			[]float64{18.5, 18.6, 18.7, 18.8, 18.5}),
		site("YouTube", "youtube.com",
			[]float64{3.15, 3.16, 3.17, 3.18, 3.15},
			[]float64{18.8, 18.9, 19.0, 19.1, 18.8},
			[]float64{0.68, 0.69, 0.70, 0.71, 0.68},
			[]float64{34.6, 34.7, 34.8, 34.9, 34.6}),
		site("Facebook", "facebook.com",
			[]float64{2.98, 2.99, 3.00, 3.01, 2.98},
			[]float64{11.2, 11.3, 11.4, 11.5, 11.2},
			[]float64{0.58, 0.59, 0.60, 0.61, 0.58},
			[]float64{19.8, 19.9, 20.0, 20.1, 19.8}),
		site("Instagram", "instagram.com",
			[]float64{2.05, 2.06, 2.07, 2.08, 2.05},
			[]float64{8.9, 9.0, 9.1, 9.2, 8.9},
			[]float64{0.42, 0.43, 0.44, 0.45, 0.42},
			[]float64{16.8, 16.9, 17.0, 17.1, 16.8}),
		site("TikTok", "tiktok.com",
			[]float64{1.68, 1.69, 1.70, 1.72, 1.68},
			[]float64{9.8, 9.9, 10.0, 10.1, 9.8},
			[]float64{0.31, 0.32, 0.33, 0.34, 0.31},
			[]float64{28.7, 28.8, 28.9, 29.0, 28.7}),
		site("GitHub", "github.com",
			[]float64{0.42, 0.43, 0.44, 0.45, 0.42},
			[]float64{0.38, 0.39, 0.40, 0.41, 0.38},
			[]float64{0.085, 0.086, 0.087, 0.088, 0.085},
			[]float64{0.95, 0.96, 0.97, 0.98, 0.95}),
		site("Reddit", "reddit.com",
			[]float64{0.38, 0.39, 0.40, 0.41, 0.38},
			[]float64{0.44, 0.45, 0.46, 0.47, 0.44},
			[]float64{0.028, 0.029, 0.030, 0.031, 0.028},
			[]float64{1.42, 1.43, 1.44, 1.45, 1.42}),
	}
}
