package theme

// Palette is the color set injected into overlay payloads so the
// renderer never infers theme on its own.
type Palette struct {
	Mode          string `json:"mode"`
	Accent        string `json:"accent"`
	BoxStroke     string `json:"boxStroke"`
	Text          string `json:"text"`
	Label         string `json:"label"`
	Thinking      string `json:"thinking"`
	PanelBg       string `json:"panelBg"`
	PanelBorder   string `json:"panelBorder"`
	Meta          string `json:"meta"`
	Divider       string `json:"divider"`
	Shimmer       string `json:"shimmer"`
	StatusBg      string `json:"statusBg"`
	StatusBorder  string `json:"statusBorder"`
	StatusText    string `json:"statusText"`
	StatusShimmer string `json:"statusShimmer"`
	StatusCheck   string `json:"statusCheck"`
	CursorBg      string `json:"cursorBg"`
	CursorBorder  string `json:"cursorBorder"`
	CursorText    string `json:"cursorText"`
	CursorShimmer string `json:"cursorShimmer"`
}

// LightOnDark is used over dark screen regions: warm accents, light
// text, translucent dark panels.
func LightOnDark() Palette {
	return Palette{
		Mode:          "light-on-dark",
		Accent:        "rgba(160, 200, 255, 0.85)",
		BoxStroke:     "rgba(102, 183, 255, 0.95)",
		Text:          "rgba(242, 245, 248, 0.96)",
		Label:         "rgba(255, 255, 255, 0.5)",
		Thinking:      "rgba(210, 215, 224, 0.85)",
		PanelBg:       "rgba(14, 14, 18, 0.9)",
		PanelBorder:   "rgba(255, 255, 255, 0.12)",
		Meta:          "rgba(255, 255, 255, 0.7)",
		Divider:       "rgba(255, 255, 255, 0.75)",
		Shimmer:       "rgba(255, 255, 255, 1)",
		StatusBg:      "rgba(4, 5, 7, 0.96)",
		StatusBorder:  "rgba(255, 255, 255, 0.06)",
		StatusText:    "rgba(242, 245, 248, 0.96)",
		StatusShimmer: "rgba(160, 200, 255, 0.6)",
		StatusCheck:   "rgba(130, 200, 130, 0.9)",
		CursorBg:      "rgba(5, 6, 8, 0.92)",
		CursorBorder:  "rgba(255, 255, 255, 0.06)",
		CursorText:    "rgba(242, 245, 248, 0.96)",
		CursorShimmer: "rgba(160, 200, 255, 0.6)",
	}
}

// DarkOnLight is used over light screen regions: saturated blue
// accents, dark text, translucent light panels.
func DarkOnLight() Palette {
	return Palette{
		Mode:          "dark-on-light",
		Accent:        "rgba(55, 120, 220, 0.85)",
		BoxStroke:     "rgba(45, 123, 255, 0.95)",
		Text:          "rgba(15, 20, 30, 0.94)",
		Label:         "rgba(15, 20, 30, 0.55)",
		Thinking:      "rgba(35, 40, 55, 0.75)",
		PanelBg:       "rgba(248, 250, 252, 0.94)",
		PanelBorder:   "rgba(15, 20, 30, 0.14)",
		Meta:          "rgba(15, 20, 30, 0.6)",
		Divider:       "rgba(15, 20, 30, 0.5)",
		Shimmer:       "rgba(60, 120, 220, 0.85)",
		StatusBg:      "rgba(245, 248, 252, 0.96)",
		StatusBorder:  "rgba(15, 20, 30, 0.1)",
		StatusText:    "rgba(15, 20, 30, 0.94)",
		StatusShimmer: "rgba(60, 120, 220, 0.55)",
		StatusCheck:   "rgba(60, 120, 220, 0.9)",
		CursorBg:      "rgba(246, 249, 252, 0.94)",
		CursorBorder:  "rgba(15, 20, 30, 0.1)",
		CursorText:    "rgba(15, 20, 30, 0.94)",
		CursorShimmer: "rgba(60, 120, 220, 0.55)",
	}
}

func palette(preferLightText bool) Palette {
	if preferLightText {
		return LightOnDark()
	}
	return DarkOnLight()
}
