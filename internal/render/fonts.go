package render

import (
	"os"
	"path/filepath"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
)

type fontSet struct {
	bold    font.Face
	regular font.Face
	small   font.Face
	badge   font.Face
}

// loadFonts reads the Poppins faces from dir. Any face that cannot be
// loaded falls back to the builtin bitmap face so rendering never stops
// on a missing font file.
func loadFonts(dir string) *fontSet {
	return &fontSet{
		bold:    loadFace(filepath.Join(dir, "Poppins-Bold.ttf"), 32),
		regular: loadFace(filepath.Join(dir, "Poppins-Regular.ttf"), 24),
		small:   loadFace(filepath.Join(dir, "Poppins-Regular.ttf"), 18),
		badge:   loadFace(filepath.Join(dir, "Poppins-Bold.ttf"), 22),
	}
}

func loadFace(path string, size float64) font.Face {
	data, err := os.ReadFile(path)
	if err != nil {
		return basicfont.Face7x13
	}
	ft, err := opentype.Parse(data)
	if err != nil {
		return basicfont.Face7x13
	}
	face, err := opentype.NewFace(ft, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return basicfont.Face7x13
	}
	return face
}
