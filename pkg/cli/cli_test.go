package cli

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamrankamilli/gsdoom/pkg/palette"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&out)
	RootCmd.SetArgs(args)
	defer RootCmd.SetArgs(nil)
	err := RootCmd.Execute()
	return out.String(), err
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "gsdoom dev\n", out)
}

func TestPaletteGenAndOverrides(t *testing.T) {
	dir := t.TempDir()
	swatch := image.NewRGBA(image.Rect(0, 0, 16*palette.SwatchStep, 16*palette.SwatchStep))
	for x := 0; x < 16; x++ {
		for y := 0; y < 16; y++ {
			c := color.RGBA{R: uint8(x * 16), G: uint8(y * 16), B: 7, A: 255}
			for dx := 0; dx < palette.SwatchStep; dx++ {
				for dy := 0; dy < palette.SwatchStep; dy++ {
					swatch.Set(x*palette.SwatchStep+dx, y*palette.SwatchStep+dy, c)
				}
			}
		}
	}
	src := filepath.Join(dir, "swatch.png")
	writePNG(t, src, swatch)

	pal := filepath.Join(dir, "out.pal")
	_, err := run(t, "palette", "gen", src, "-o", pal)
	require.NoError(t, err)

	raw, err := os.ReadFile(pal)
	require.NoError(t, err)
	require.Len(t, raw, 768)
	// index 17 is x=1, y=1
	assert.Equal(t, []byte{16, 16, 7}, raw[17*3:17*3+3])

	out, err := run(t, "palette", "overrides", "--palette", pal)
	palettePath = ""
	require.NoError(t, err)
	var doc palette.OverrideDocument
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	require.Len(t, doc.Overrides, 256)
	assert.Equal(t, "rgba(16, 16, 7, 1)", doc.Overrides[17].Properties[0].Value.FixedColor)
}

func TestTranscodeImage(t *testing.T) {
	dir := t.TempDir()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.White)
	img.Set(1, 0, color.White)
	img.Set(0, 1, color.Black)
	img.Set(1, 1, color.Black)
	src := filepath.Join(dir, "frame.png")
	writePNG(t, src, img)

	pal := filepath.Join(dir, "bw.json")
	require.NoError(t, os.WriteFile(pal, []byte(`[[0,0,0],[255,255,255]]`), 0o644))

	out, err := run(t, "transcode", src, "--palette", pal, "--width", "2", "--height", "2", "--omit-empty-columns", "--ref-id", "Z")
	palettePath = ""
	transcodeFlags.omitEmpty = false
	require.NoError(t, err)

	var resp struct {
		Key    string `json:"key"`
		State  string `json:"state"`
		Frames []struct {
			RefID  string `json:"refId"`
			Fields []struct {
				Name   string            `json:"name"`
				Labels map[string]string `json:"labels"`
				Values []interface{}     `json:"values"`
			} `json:"fields"`
		} `json:"frames"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "Z", resp.Key)
	assert.Equal(t, "done", resp.State)
	require.Len(t, resp.Frames, 1)
	fields := resp.Frames[0].Fields
	require.Len(t, fields, 3)
	assert.Equal(t, "Time", fields[0].Name)
	// The image is top-down: black sits at y=0, white at y=1.
	assert.Equal(t, "0", fields[1].Labels["color"])
	assert.Equal(t, []interface{}{0.0, 0.0}, fields[1].Values)
	assert.Equal(t, []interface{}{1.0, 1.0}, fields[2].Values)
}

func TestTranscodeRejectsOddSize(t *testing.T) {
	_, err := run(t, "transcode", "missing.png", "--width", "3")
	transcodeFlags.width = 320
	assert.Error(t, err)
}

func TestServeRejectsInvalidConfig(t *testing.T) {
	_, err := run(t, "serve", "--provider", "bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown provider "bogus"`)
}
