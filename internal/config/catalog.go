package config

// Theme is a selectable look and copy for the front-end.
type Theme struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CSSClass   string `json:"css_class"`
	UITitle    string `json:"ui_title"`
	UISubtitle string `json:"ui_subtitle"`
}

// Option is an id/label pair rendered in a dropdown.
type Option struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Catalog feeds the front-end dropdowns.
type Catalog struct {
	DataSources []Option `json:"data_sources"`
	Themes      []Theme  `json:"themes"`
	Models      []Option `json:"models"`
	Sections    []int    `json:"sections"`
	Levels      []string `json:"levels"`
}

// DefaultCatalog returns the built-in themes, models, sections 1-15 and levels A-Z.
// Data sources come from reference data and are filled in by the caller.
func DefaultCatalog() Catalog {
	c := Catalog{
		Themes: []Theme{
			{
				ID:         "kpop",
				Name:       "KPop Demon Hunters",
				CSSClass:   "",
				UITitle:    "KPop Vocab Hunters",
				UISubtitle: "Hunt Vocabulary. Defeat Demons.",
			},
			{
				ID:         "wof",
				Name:       "Wings of Fire",
				CSSClass:   "theme-wof",
				UITitle:    "Dragon Vocab Scrolls",
				UISubtitle: "Fly High. Burn Bright. Learn Words.",
			},
		},
		Models: []Option{
			{ID: "gpt-5-mini", Name: "gpt-5-mini"},
			{ID: "gpt-4o", Name: "gpt-4o (High Cost)"},
		},
	}
	for i := 1; i <= 15; i++ {
		c.Sections = append(c.Sections, i)
	}
	for r := 'A'; r <= 'Z'; r++ {
		c.Levels = append(c.Levels, string(r))
	}
	return c
}

// Theme looks up a theme by id.
func (c Catalog) Theme(id string) (Theme, bool) {
	for _, t := range c.Themes {
		if t.ID == id {
			return t, true
		}
	}
	return Theme{}, false
}

// HasModel reports whether id is a known model.
func (c Catalog) HasModel(id string) bool {
	for _, m := range c.Models {
		if m.ID == id {
			return true
		}
	}
	return false
}

// HasDataSource reports whether id is a known data source.
func (c Catalog) HasDataSource(id string) bool {
	for _, d := range c.DataSources {
		if d.ID == id {
			return true
		}
	}
	return false
}
