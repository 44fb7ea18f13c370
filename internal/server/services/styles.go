package services

// Dimensions is the pixel size of a generated image.
type Dimensions struct {
	Width  int
	Height int
}

// Sizes maps the size classes a client may request to output dimensions.
var Sizes = map[string]Dimensions{
	"1:1":           {Width: 1024, Height: 1024},
	"2:3 Portrait":  {Width: 832, Height: 1216},
	"2:3 Landscape": {Width: 1216, Height: 832},
}

// DefaultSize is used for stored jobs whose size class is no longer known.
const DefaultSize = "1:1"

// StyleSuffixes are appended to the prompt of a job with that style.
var StyleSuffixes = map[string]string{
	"Colorful":         ", vibrant colors, highly detailed, 8k quality",
	"3D Render":        ", CGI, 3D render, octane lighting, product-shot quality",
	"3D Cinematic":     ", cinematic lighting, volumetric fog, ray tracing, movie-quality",
	"Photorealistic":   ", ultra photorealistic, professional photography, sharp details, natural lighting",
	"Illustration":     ", digital illustration, concept art style, clean linework",
	"Oil Painting":     ", oil painting style, textured brushstrokes, fine art look",
	"Watercolor":       ", watercolor painting style, soft edges, artistic wash textures",
	"Cyberpunk":        ", neon lights, futuristic glow, dystopian atmosphere, high contrast",
	"Fantasy":          ", magical atmosphere, epic fantasy style, mystical lighting",
	"Anime":            ", anime style, expressive eyes, cel-shaded, vibrant colors",
	"Manga":            ", manga style, dramatic composition, black-and-white inked lines",
	"Cartoon":          ", cartoon style, bold outlines, smooth shading, playful character design",
	"Cartoon (Vector)": ", vector cartoon style, bold outlines, flat colors, Disney-like aesthetic",
	"Disney/Pixar":     ", Pixar-style 3D animation, soft lighting, family-friendly character design",
	"Chibi":            ", chibi style, cute small characters, oversized expressive eyes",
	"Kawaii":           ", kawaii style, super cute, pastel colors, soft rounded shapes",
	"Cel-Shading":      ", cel-shaded animation style, bold shadows, clean color blocks",
	"Comic Strip":      ", comic strip style, halftone shading, bold ink lines, retro comic look",
	"Steampunk":        ", Victorian industrial style, brass textures, gears, retro-futuristic",
}

func dimensionsFor(size string) Dimensions {
	if d, ok := Sizes[size]; ok {
		return d
	}
	return Sizes[DefaultSize]
}

// ComposePrompt appends the style suffix to prompt. Unknown styles add
// nothing.
func ComposePrompt(prompt, style string) string {
	return prompt + StyleSuffixes[style]
}
