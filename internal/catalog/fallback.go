package catalog

// FallbackSource names the built-in catalog in ClipSet.Source.
const FallbackSource = "builtin:fallback"

// FallbackClipSet returns the fixed three-clip catalog shown when the real
// clip document cannot be loaded.
func FallbackClipSet() ClipSet {
	return ClipSet{
		Clips: []Clip{
			NewClip("1", "MOCK: Definition Algorithm Design", 5, 35,
				"https://www.w3schools.com/html/mov_bbb.mp4",
				"[MOCK DATA] Clear definition and explanation of Algorithm Design"),
			NewClip("2", "MOCK: Example Algorithm Design", 45, 75,
				"https://sample-videos.com/zip/10/mp4/SampleVideo_1280x720_1mb.mp4",
				"[MOCK DATA] Practical example demonstrating Algorithm Design"),
			NewClip("3", "MOCK: Computer Science Concepts", 120, 150,
				"https://www.learningcontainer.com/wp-content/uploads/2020/05/sample-mp4-file.mp4",
				"[MOCK DATA] Clear definition and explanation of Computer Science Concepts"),
		},
		Fallback: true,
		Source:   FallbackSource,
	}
}
