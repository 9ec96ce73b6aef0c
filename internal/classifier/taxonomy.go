package classifier

// Category is one entry of the issue taxonomy.
type Category struct {
	Key         string `json:"key"`
	Description string `json:"description"`
	Group       string `json:"group"`
}

var taxonomy = []Category{
	{"roads", "Roads, potholes, road signs", "infrastructure"},
	{"lighting", "Public lighting", "infrastructure"},
	{"buildings", "Public buildings, schools, municipal offices", "infrastructure"},
	{"sidewalks", "Sidewalks and pedestrian areas", "infrastructure"},

	{"garbage", "Waste collection and street cleaning", "environment"},
	{"parks", "Parks and public gardens", "environment"},
	{"trees", "Trees and urban greenery", "environment"},
	{"pollution", "Pollution (air, water, noise)", "environment"},

	{"bureaucracy", "Bureaucratic and administrative problems", "services"},
	{"health", "Local health services", "services"},
	{"education", "School and educational services", "services"},
	{"social", "Social services and assistance", "services"},

	{"public_transport", "Public transport (bus, metro)", "mobility"},
	{"parking", "Parking", "mobility"},
	{"traffic", "Traffic and road circulation", "mobility"},
	{"cycling", "Cycle lanes", "mobility"},

	{"public_safety", "Public safety", "safety"},
	{"vandalism", "Vandalism and urban decay", "safety"},
	{"noise", "Disturbance of the public peace", "safety"},

	{"water", "Water supply and water problems", "utilities"},
	{"electricity", "Public electricity grid", "utilities"},
	{"internet", "Connectivity and public digital services", "utilities"},

	{"emergency", "Emergency situations", "other"},
	{"other", "Other uncategorized problems", "other"},
}

// Taxonomy returns a copy of the built-in category list in prompt order.
func Taxonomy() []Category {
	out := make([]Category, len(taxonomy))
	copy(out, taxonomy)
	return out
}

func categoryIndex(categories []Category) map[string]struct{} {
	index := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		index[c.Key] = struct{}{}
	}
	return index
}
