package thumbnail

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"path"
	"strings"

	logging "github.com/ipfs/go-log/v2"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/xerrors"
)

var log = logging.Logger("thumbnail")

const Suffix = ".thumbnail.png"

type Size struct {
	Width  int
	Height int
}

var (
	CoverSize = Size{Width: 600, Height: 340}
	IconSize  = Size{Width: 320, Height: 320}
)

type Thumbnail struct {
	Name string
	Data []byte
}

type source struct {
	src  interface{}
	size Size
}

// plan lists the images of the metadata that get a thumbnail: the covers,
// the badge icons and the icon.
func plan(rdf map[string]interface{}) []source {
	var srcs []source
	if covers, ok := rdf["covers"].([]interface{}); ok {
		for _, c := range covers {
			srcs = append(srcs, source{src: c, size: CoverSize})
		}
	}
	if badges, ok := rdf["badges"].([]interface{}); ok {
		for _, b := range badges {
			badge, ok := b.(map[string]interface{})
			if !ok {
				continue
			}
			srcs = append(srcs, source{src: badge["icon"], size: IconSize})
		}
	}
	return append(srcs, source{src: rdf["icon"], size: IconSize})
}

// Create downsizes the images referenced by rdf that open can resolve.
// The result maps the image name to its thumbnail. Remote images and
// images that fail to decode are skipped.
func Create(rdf map[string]interface{}, open func(name string) ([]byte, bool)) map[string]Thumbnail {
	thumbnails := make(map[string]Thumbnail)
	for _, s := range plan(rdf) {
		src, ok := s.src.(string)
		if !ok || strings.HasSuffix(src, Suffix) {
			continue
		}

		data, ok := open(src)
		if !ok {
			if strings.HasPrefix(src, "http") {
				log.Infof("skipping thumbnail creation for remote %s", src)
			} else {
				log.Errorf("skipping thumbnail creation for %s", src)
			}
			continue
		}

		out, err := Downsize(data, s.size)
		if err != nil {
			log.Warnf("thumbnail of %s: %v", src, err)
			continue
		}

		t := Thumbnail{Name: Name(src), Data: out}
		if prev, ok := thumbnails[src]; ok {
			if prev.Name != t.Name || !bytes.Equal(prev.Data, t.Data) {
				log.Errorf("duplicated thumbnail name '%s'", src)
			}
			continue
		}
		thumbnails[src] = t
	}
	return thumbnails
}

// Name returns the file name of the thumbnail of src.
func Name(src string) string {
	base := path.Base(src)
	return strings.TrimSuffix(base, path.Ext(base)) + Suffix
}

// Downsize scales an image to fit into size, keeping the aspect ratio, and
// encodes it as png. Images that fit already are only re-encoded.
func Downsize(data []byte, size Size) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, xerrors.Errorf("decode image: %w", err)
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > size.Width {
		h = maxInt(1, h*size.Width/w)
		w = size.Width
	}
	if h > size.Height {
		w = maxInt(1, w*size.Height/h)
		h = size.Height
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, xerrors.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
