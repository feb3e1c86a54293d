package reader

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/katalvlaran/amrtree/field"
	"github.com/katalvlaran/amrtree/internal/errs"
	"github.com/katalvlaran/amrtree/maskedbox"
)

// plotfileMagic tags the format so a bad file is rejected up front rather
// than failing deep inside a partially-read block.
const plotfileMagic = uint32(0x414d5250) // "AMRP"

// Plotfile is a Reader over a simple custom binary encoding of a block
// decomposition: a header (domain, cell_volume, extra field names) followed
// by one record per block (geometry, neighbour links, then raw float64
// samples for the primary field and each extra field, in header order).
// All integers are big-endian, following the binary.Write convention used
// throughout this encoding.
type Plotfile struct {
	r io.Reader
}

// NewPlotfile wraps r for reading.
func NewPlotfile(r io.Reader) *Plotfile {
	return &Plotfile{r: r}
}

type plotfileHeader struct {
	domain     Domain
	extraNames []string
	numBlocks  uint32
}

func (p *Plotfile) readHeader(r *bufio.Reader) (plotfileHeader, error) {
	var magic uint32
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return plotfileHeader{}, errs.Resource(err, "reading plotfile magic")
	}
	if magic != plotfileMagic {
		return plotfileHeader{}, errs.Config("not an amrtree plotfile (bad magic 0x%x)", magic)
	}

	var hdr plotfileHeader
	for a := 0; a < 3; a++ {
		var v int64
		if err := binary.Read(r, binary.BigEndian, &v); err != nil {
			return plotfileHeader{}, errs.Resource(err, "reading domain min")
		}
		hdr.domain.Min[a] = int(v)
	}
	for a := 0; a < 3; a++ {
		var v int64
		if err := binary.Read(r, binary.BigEndian, &v); err != nil {
			return plotfileHeader{}, errs.Resource(err, "reading domain max")
		}
		hdr.domain.Max[a] = int(v)
	}
	if err := binary.Read(r, binary.BigEndian, &hdr.domain.CellVolume); err != nil {
		return plotfileHeader{}, errs.Resource(err, "reading cell volume")
	}

	var numNames uint32
	if err := binary.Read(r, binary.BigEndian, &numNames); err != nil {
		return plotfileHeader{}, errs.Resource(err, "reading extra field count")
	}
	for i := uint32(0); i < numNames; i++ {
		name, err := readString(r)
		if err != nil {
			return plotfileHeader{}, errs.Resource(err, "reading extra field name %d", i)
		}
		hdr.extraNames = append(hdr.extraNames, name)
	}

	if err := binary.Read(r, binary.BigEndian, &hdr.numBlocks); err != nil {
		return plotfileHeader{}, errs.Resource(err, "reading block count")
	}
	return hdr, nil
}

// Domain reads and returns just the header's domain/cell_volume, without
// decoding any block payloads. When the underlying reader is an io.Seeker
// (such as *os.File), Domain seeks back to where it started, so Blocks can
// follow on the same Plotfile; over any other reader, Blocks then starts
// wherever Domain left the stream.
func (p *Plotfile) Domain() (Domain, error) {
	seeker, canSeek := p.r.(io.Seeker)
	var start int64
	if canSeek {
		var err error
		if start, err = seeker.Seek(0, io.SeekCurrent); err != nil {
			return Domain{}, errs.Resource(err, "locating plotfile start")
		}
	}
	r := bufio.NewReader(p.r)
	hdr, err := p.readHeader(r)
	if err != nil {
		return Domain{}, err
	}
	if canSeek {
		if _, err := seeker.Seek(start, io.SeekStart); err != nil {
			return Domain{}, errs.Resource(err, "rewinding plotfile")
		}
	}
	return hdr.domain, nil
}

// Blocks decodes every block record in the file, reading the header first
// from the underlying reader's current position and consuming the stream.
func (p *Plotfile) Blocks() ([]Block, error) {
	r := bufio.NewReader(p.r)
	hdr, err := p.readHeader(r)
	if err != nil {
		return nil, err
	}

	blocks := make([]Block, 0, hdr.numBlocks)
	for i := uint32(0); i < hdr.numBlocks; i++ {
		b, err := readBlock(r, hdr.extraNames)
		if err != nil {
			return nil, errs.Resource(err, "reading block %d", i)
		}
		blocks = append(blocks, b)
	}
	if err := validate(blocks); err != nil {
		return nil, err
	}
	return blocks, nil
}

func readBox3(r io.Reader) (field.Box3, error) {
	var lo, hi [3]int32
	for a := 0; a < 3; a++ {
		if err := binary.Read(r, binary.BigEndian, &lo[a]); err != nil {
			return field.Box3{}, err
		}
	}
	for a := 0; a < 3; a++ {
		if err := binary.Read(r, binary.BigEndian, &hi[a]); err != nil {
			return field.Box3{}, err
		}
	}
	return field.NewBox3([3]int{int(lo[0]), int(lo[1]), int(lo[2])}, [3]int{int(hi[0]), int(hi[1]), int(hi[2])}), nil
}

func writeBox3(w io.Writer, b field.Box3) error {
	for a := 0; a < 3; a++ {
		if err := binary.Write(w, binary.BigEndian, int32(b.Lo[a])); err != nil {
			return err
		}
	}
	for a := 0; a < 3; a++ {
		if err := binary.Write(w, binary.BigEndian, int32(b.Hi[a])); err != nil {
			return err
		}
	}
	return nil
}

func readString(r *bufio.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

func readGrid(r io.Reader, bounds field.Box3) (*field.Grid, error) {
	g := field.NewGrid(bounds)
	if err := binary.Read(r, binary.BigEndian, g.Values); err != nil {
		return nil, err
	}
	return g, nil
}

// writeGrid writes g's samples over core, the extent readGrid reads back.
func writeGrid(w io.Writer, g *field.Grid, core field.Box3) error {
	vals := make([]float64, core.Size())
	for i := range vals {
		vals[i] = g.Get(core.Coordinate(int64(i)))
	}
	return binary.Write(w, binary.BigEndian, vals)
}

func readBlock(r *bufio.Reader, extraNames []string) (Block, error) {
	var gid, level, refinement int32
	if err := binary.Read(r, binary.BigEndian, &gid); err != nil {
		return Block{}, err
	}
	if err := binary.Read(r, binary.BigEndian, &level); err != nil {
		return Block{}, err
	}
	if err := binary.Read(r, binary.BigEndian, &refinement); err != nil {
		return Block{}, err
	}

	core, err := readBox3(r)
	if err != nil {
		return Block{}, err
	}
	bounds, err := readBox3(r)
	if err != nil {
		return Block{}, err
	}

	var numLinks uint32
	if err := binary.Read(r, binary.BigEndian, &numLinks); err != nil {
		return Block{}, err
	}
	links := make([]maskedbox.NeighborLink, 0, numLinks)
	for i := uint32(0); i < numLinks; i++ {
		var lgid, llevel, lrefinement int32
		if err := binary.Read(r, binary.BigEndian, &lgid); err != nil {
			return Block{}, err
		}
		if err := binary.Read(r, binary.BigEndian, &llevel); err != nil {
			return Block{}, err
		}
		if err := binary.Read(r, binary.BigEndian, &lrefinement); err != nil {
			return Block{}, err
		}
		lbounds, err := readBox3(r)
		if err != nil {
			return Block{}, err
		}
		links = append(links, maskedbox.NeighborLink{GID: int(lgid), Level: int(llevel), Refinement: int(lrefinement), Bounds: lbounds})
	}

	values, err := readGrid(r, core)
	if err != nil {
		return Block{}, err
	}

	var extra map[string]*field.Grid
	if len(extraNames) > 0 {
		extra = make(map[string]*field.Grid, len(extraNames))
		for _, name := range extraNames {
			g, err := readGrid(r, core)
			if err != nil {
				return Block{}, err
			}
			extra[name] = g
		}
	}

	return Block{
		GID:         int(gid),
		Level:       int(level),
		Refinement:  int(refinement),
		Core:        core,
		Bounds:      bounds,
		Values:      values,
		ExtraFields: extra,
		Links:       links,
	}, nil
}

func writeBlock(w io.Writer, b Block, extraNames []string) error {
	if err := binary.Write(w, binary.BigEndian, int32(b.GID)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, int32(b.Level)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, int32(b.Refinement)); err != nil {
		return err
	}
	if err := writeBox3(w, b.Core); err != nil {
		return err
	}
	if err := writeBox3(w, b.Bounds); err != nil {
		return err
	}

	if err := binary.Write(w, binary.BigEndian, uint32(len(b.Links))); err != nil {
		return err
	}
	for _, l := range b.Links {
		if err := binary.Write(w, binary.BigEndian, int32(l.GID)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, int32(l.Level)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, int32(l.Refinement)); err != nil {
			return err
		}
		if err := writeBox3(w, l.Bounds); err != nil {
			return err
		}
	}

	if err := writeGrid(w, b.Values, b.Core); err != nil {
		return err
	}
	for _, name := range extraNames {
		g, ok := b.ExtraFields[name]
		if !ok {
			return errs.Config("block %d missing declared extra field %q", b.GID, name)
		}
		if err := writeGrid(w, g, b.Core); err != nil {
			return err
		}
	}
	return nil
}

// WritePlotfile encodes domain and blocks in Plotfile's binary format.
// extraFieldNames fixes the column order every block's ExtraFields must
// provide.
func WritePlotfile(w io.Writer, domain Domain, blocks []Block, extraFieldNames []string) error {
	bw := bufio.NewWriter(w)

	if err := binary.Write(bw, binary.BigEndian, plotfileMagic); err != nil {
		return errs.Resource(err, "writing plotfile magic")
	}
	for a := 0; a < 3; a++ {
		if err := binary.Write(bw, binary.BigEndian, int64(domain.Min[a])); err != nil {
			return errs.Resource(err, "writing domain min")
		}
	}
	for a := 0; a < 3; a++ {
		if err := binary.Write(bw, binary.BigEndian, int64(domain.Max[a])); err != nil {
			return errs.Resource(err, "writing domain max")
		}
	}
	if err := binary.Write(bw, binary.BigEndian, domain.CellVolume); err != nil {
		return errs.Resource(err, "writing cell volume")
	}

	if err := binary.Write(bw, binary.BigEndian, uint32(len(extraFieldNames))); err != nil {
		return errs.Resource(err, "writing extra field count")
	}
	for _, name := range extraFieldNames {
		if err := writeString(bw, name); err != nil {
			return errs.Resource(err, "writing extra field name %q", name)
		}
	}

	if err := binary.Write(bw, binary.BigEndian, uint32(len(blocks))); err != nil {
		return errs.Resource(err, "writing block count")
	}
	for _, b := range blocks {
		if err := writeBlock(bw, b, extraFieldNames); err != nil {
			return errs.Resource(err, "writing block %d", b.GID)
		}
	}

	return bw.Flush()
}
