package screenshot

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

func solidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestSaveAndRetrieveRoundTrips(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	data := solidPNG(t, 800, 600, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	ref, err := store.Save(data, StoreOptions{TestID: "t1", StepID: "step_1", Format: FormatPNG})
	require.NoError(t, err)
	require.Equal(t, "t1", ref.TestID)
	require.Equal(t, "step_1", ref.StepID)

	got, err := store.Retrieve(ref)
	require.NoError(t, err)
	require.NotEmpty(t, got)

	thumb, err := store.RetrieveThumbnail(ref)
	require.NoError(t, err)
	img, _, err := image.Decode(bytes.NewReader(thumb))
	require.NoError(t, err)
	require.LessOrEqual(t, img.Bounds().Dx(), 320)
	require.LessOrEqual(t, img.Bounds().Dy(), 240)
}

func TestQueryFiltersByTestAndStep(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	data := solidPNG(t, 10, 10, color.White)
	_, err = store.Save(data, StoreOptions{TestID: "t1", StepID: "a"})
	require.NoError(t, err)
	_, err = store.Save(data, StoreOptions{TestID: "t1", StepID: "b"})
	require.NoError(t, err)
	_, err = store.Save(data, StoreOptions{TestID: "t2", StepID: "a"})
	require.NoError(t, err)

	all, err := store.Query("t1", "")
	require.NoError(t, err)
	require.Len(t, all, 2)

	narrowed, err := store.Query("t1", "a")
	require.NoError(t, err)
	require.Len(t, narrowed, 1)
}

func TestCompareIdenticalImages(t *testing.T) {
	a := solidPNG(t, 50, 50, color.RGBA{R: 100, G: 100, B: 100, A: 255})
	b := solidPNG(t, 50, 50, color.RGBA{R: 100, G: 100, B: 100, A: 255})

	result, err := Compare(a, b, CompareOptions{})
	require.NoError(t, err)
	require.True(t, result.Equal)
	require.Zero(t, result.DiffPixels)
}

func TestCompareDifferentImages(t *testing.T) {
	a := solidPNG(t, 50, 50, color.RGBA{R: 0, G: 0, B: 0, A: 255})
	b := solidPNG(t, 50, 50, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	result, err := Compare(a, b, CompareOptions{})
	require.NoError(t, err)
	require.False(t, result.Equal)
	require.Equal(t, result.TotalPixels, result.DiffPixels)
}

func TestCompareDifferentDimensions(t *testing.T) {
	a := solidPNG(t, 10, 10, color.White)
	b := solidPNG(t, 20, 20, color.White)

	result, err := Compare(a, b, CompareOptions{})
	require.NoError(t, err)
	require.True(t, result.DimensionsDiffer)
	require.False(t, result.Equal)
}

func TestCompareWithinThresholdPasses(t *testing.T) {
	a := solidPNG(t, 20, 20, color.RGBA{R: 100, G: 100, B: 100, A: 255})
	b := solidPNG(t, 20, 20, color.RGBA{R: 102, G: 100, B: 100, A: 255})

	result, err := Compare(a, b, CompareOptions{Threshold: 0.1})
	require.NoError(t, err)
	require.True(t, result.Equal)
}

func TestCompareFlippedSinglePixelCountsAsOneDifference(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			img.Set(x, y, color.RGBA{R: 100, G: 100, B: 100, A: 255})
		}
	}
	var bufA bytes.Buffer
	require.NoError(t, png.Encode(&bufA, img))

	img.Set(0, 0, color.RGBA{R: 150, G: 150, B: 150, A: 255})
	var bufB bytes.Buffer
	require.NoError(t, png.Encode(&bufB, img))

	result, err := Compare(bufA.Bytes(), bufB.Bytes(), CompareOptions{Threshold: 0.1})
	require.NoError(t, err)
	require.Equal(t, 1, result.DiffPixels)
	require.False(t, result.Equal)
}

func TestResizeProducesSmallerImage(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	data := solidPNG(t, 800, 600, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	ref, err := store.Save(data, StoreOptions{TestID: "t1", Format: FormatPNG})
	require.NoError(t, err)

	resized, err := store.Resize(ref, 400, 0)
	require.NoError(t, err)
	require.NotEqual(t, ref.Path, resized.Path)

	got, err := store.Retrieve(resized)
	require.NoError(t, err)
	img, _, err := image.Decode(bytes.NewReader(got))
	require.NoError(t, err)
	require.Equal(t, 400, img.Bounds().Dx())
	require.Equal(t, 300, img.Bounds().Dy())
}

func TestConvertChangesFormat(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	data := solidPNG(t, 100, 100, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	ref, err := store.Save(data, StoreOptions{TestID: "t1", Format: FormatPNG})
	require.NoError(t, err)

	converted, err := store.Convert(ref, FormatJPEG, 90)
	require.NoError(t, err)
	require.Contains(t, converted.Path, ".jpg")

	got, err := store.Retrieve(converted)
	require.NoError(t, err)
	_, format, err := image.Decode(bytes.NewReader(got))
	require.NoError(t, err)
	require.Equal(t, "jpeg", format)
}

func TestRepairIndexRebuildsFromMetadata(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	data := solidPNG(t, 10, 10, color.White)
	_, err = store.Save(data, StoreOptions{TestID: "t1", StepID: "a"})
	require.NoError(t, err)
	_, err = store.Save(data, StoreOptions{TestID: "t1", StepID: "b"})
	require.NoError(t, err)

	require.NoError(t, store.base.Delete(indexFile))

	before, err := store.Query("t1", "")
	require.NoError(t, err)
	require.Empty(t, before)

	require.NoError(t, store.RepairIndex())

	after, err := store.Query("t1", "")
	require.NoError(t, err)
	require.Len(t, after, 2)
}
