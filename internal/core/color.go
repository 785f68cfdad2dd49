package core

import "math/rand/v2"

// SystemColor is used for server notices.
const SystemColor = "#888888"

// SystemUser is the sender name of server notices.
const SystemUser = "System"

// palette holds the display colors handed to sessions. SystemColor is not in it.
var palette = [...]string{
	"#E6194B", "#3CB44B", "#4363D8", "#F58231",
	"#911EB4", "#42D4F4", "#F032E6", "#9A6324",
	"#469990", "#800000", "#808000", "#000075",
}

func randomColor() string {
	return palette[rand.IntN(len(palette))]
}
