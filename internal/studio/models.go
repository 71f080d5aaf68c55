package studio

// DefaultModelID is the model selected when none is configured.
const DefaultModelID = "gemini-3-flash-preview"

// DefaultAspectRatio is the ratio used when none is selected.
const DefaultAspectRatio = "1:1"

// allRatios is the full aspect-ratio set supported by the static models.
var allRatios = []string{"1:1", "3:2", "2:3", "16:9", "9:16", "21:9", "4:3", "3:4"}

// AllRatios returns a copy of the full supported aspect-ratio set.
func AllRatios() []string {
	return append([]string(nil), allRatios...)
}

// StaticModels is the built-in model catalog, used whenever the proxy's
// model listing fails or comes back empty.
var StaticModels = []ModelDescriptor{
	{
		ID:          "gemini-3-flash-preview",
		Name:        "Gemini 3 Flash",
		Description: "Latest high-speed multimodal model with advanced reasoning.",
		Ratios:      allRatios,
	},
	{
		ID:          "gemini-3-pro-image-preview",
		Name:        "Gemini 3 Pro",
		Description: "Enhanced quality and creative accuracy for complex visions.",
		Ratios:      allRatios,
	},
}
