package model

import "slices"

var Categories = []string{
	"Batteries",
	"Inverters",
	"Solar Panels",
	"Solar Kits / Solutions",
	"Portable / Outdoor Power",
	"Accessories / Controllers",
}

func IsCategory(s string) bool {
	return slices.Contains(Categories, s)
}
