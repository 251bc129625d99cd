package tile

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/lintang-b-s/tilegraph/pkg"
	"github.com/lintang-b-s/tilegraph/pkg/geo"
	"github.com/pkg/errors"
	"github.com/twpayne/go-polyline"
)

const (
	tileMagic   uint32 = 0x54485047 // "GPHT"
	tileVersion uint16 = 1
)

type tileHeader struct {
	Magic             uint32
	Version           uint16
	_                 uint16
	GraphID           uint64
	NodeCount         uint32
	DirectedEdgeCount uint32
	EdgeInfoCount     uint32
	SignCount         uint32
}

type nodeInfoRecord struct {
	Lat            float64
	Lng            float64
	EdgeIndex      uint32
	EdgeCount      uint32
	DriveableCount uint32
	BestClass      uint8
	AccessMask     uint8
	Type           uint8
	Flags          uint8
}

const (
	nodeFlagIntersection uint8 = 1 << iota
	nodeFlagTrafficSignal
)

type directedEdgeRecord struct {
	EdgeInfoOffset  uint32
	EndNode         uint64
	Length          uint32
	Speed           float32
	Use             uint8
	Classification  uint8
	Flags           uint16
	LocalEdgeIndex  uint32
	RestrictionMask uint32
}

const (
	edgeFlagForward uint16 = 1 << iota
	edgeFlagNotThru
	edgeFlagInternal
	edgeFlagTrafficSignal
	edgeFlagExitSign
	edgeFlagForwardAccess
	edgeFlagReverseAccess
)

// TileFileName returns the artifact name for a tile.
func TileFileName(graphID geo.GraphID, compressed bool) string {
	name := fmt.Sprintf("%d_%d.gph", graphID.Level(), graphID.Tile())
	if compressed {
		name += ".bz2"
	}
	return name
}

// StoreTileData writes the tile artifact under dir and returns the
// number of bytes written.
func (b *GraphTileBuilder) StoreTileData(dir string, compress bool) (int64, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, errors.Wrapf(err, "tile: mkdir %s", dir)
	}
	path := filepath.Join(dir, TileFileName(b.graphID, compress))
	f, err := os.Create(path)
	if err != nil {
		return 0, errors.Wrapf(err, "tile: create %s", path)
	}
	defer f.Close()

	var w io.Writer
	var bz *bzip2.Writer
	bw := bufio.NewWriter(f)
	w = bw
	if compress {
		bz, err = bzip2.NewWriter(bw, &bzip2.WriterConfig{})
		if err != nil {
			return 0, errors.Wrapf(err, "tile: bzip2 %s", path)
		}
		w = bz
	}

	if err := b.write(w); err != nil {
		return 0, errors.Wrapf(err, "tile: write %s", path)
	}
	if bz != nil {
		if err := bz.Close(); err != nil {
			return 0, errors.Wrapf(err, "tile: bzip2 close %s", path)
		}
	}
	if err := bw.Flush(); err != nil {
		return 0, errors.Wrapf(err, "tile: flush %s", path)
	}
	fi, err := f.Stat()
	if err != nil {
		return 0, errors.Wrapf(err, "tile: stat %s", path)
	}
	return fi.Size(), nil
}

func (b *GraphTileBuilder) write(w io.Writer) error {
	hdr := tileHeader{
		Magic:             tileMagic,
		Version:           tileVersion,
		GraphID:           uint64(b.graphID),
		NodeCount:         uint32(len(b.nodes)),
		DirectedEdgeCount: uint32(len(b.directedEdges)),
		EdgeInfoCount:     uint32(len(b.edgeInfos)),
		SignCount:         uint32(len(b.signs)),
	}
	if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
		return err
	}

	for _, n := range b.nodes {
		rec := nodeInfoRecord{
			Lat:            n.Lat,
			Lng:            n.Lng,
			EdgeIndex:      n.EdgeIndex,
			EdgeCount:      n.EdgeCount,
			DriveableCount: n.DriveableCount,
			BestClass:      uint8(n.BestClass),
			AccessMask:     n.AccessMask,
			Type:           uint8(n.Type),
		}
		if n.Intersection {
			rec.Flags |= nodeFlagIntersection
		}
		if n.TrafficSignal {
			rec.Flags |= nodeFlagTrafficSignal
		}
		if err := binary.Write(w, binary.LittleEndian, rec); err != nil {
			return err
		}
	}

	for _, e := range b.directedEdges {
		rec := directedEdgeRecord{
			EdgeInfoOffset:  e.EdgeInfoOffset,
			EndNode:         uint64(e.EndNode),
			Length:          e.Length,
			Speed:           e.Speed,
			Use:             uint8(e.Use),
			Classification:  uint8(e.Classification),
			LocalEdgeIndex:  e.LocalEdgeIndex,
			RestrictionMask: e.RestrictionMask,
		}
		for _, fl := range []struct {
			set bool
			bit uint16
		}{
			{e.Forward, edgeFlagForward},
			{e.NotThru, edgeFlagNotThru},
			{e.Internal, edgeFlagInternal},
			{e.TrafficSignal, edgeFlagTrafficSignal},
			{e.ExitSign, edgeFlagExitSign},
			{e.ForwardAccess, edgeFlagForwardAccess},
			{e.ReverseAccess, edgeFlagReverseAccess},
		} {
			if fl.set {
				rec.Flags |= fl.bit
			}
		}
		if err := binary.Write(w, binary.LittleEndian, rec); err != nil {
			return err
		}
	}

	for _, ei := range b.edgeInfos {
		if err := binary.Write(w, binary.LittleEndian, uint64(ei.SourceNode)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint64(ei.TargetNode)); err != nil {
			return err
		}
		coords := make([][]float64, len(ei.Shape))
		for i, c := range ei.Shape {
			coords[i] = []float64{c.Lat, c.Lon}
		}
		if err := writeBytes(w, polyline.EncodeCoords(coords)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(len(ei.Names))); err != nil {
			return err
		}
		for _, name := range ei.Names {
			if err := writeBytes(w, []byte(name)); err != nil {
				return err
			}
		}
	}

	for _, s := range b.signs {
		if err := binary.Write(w, binary.LittleEndian, s.DirectedEdgeIndex); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint8(s.Info.Type)); err != nil {
			return err
		}
		if err := writeBytes(w, []byte(s.Info.Text)); err != nil {
			return err
		}
	}
	return nil
}

func writeBytes(w io.Writer, b []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readBytes(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

// GraphTile is a decoded tile artifact.
type GraphTile struct {
	GraphID       geo.GraphID
	Nodes         []NodeInfo
	DirectedEdges []DirectedEdge
	EdgeInfos     []EdgeInfo
	Signs         []Sign
}

// ReadTile decodes a tile artifact. Compression is inferred from the
// file name.
func ReadTile(path string) (*GraphTile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "tile: open %s", path)
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	if strings.HasSuffix(path, ".bz2") {
		bz, err := bzip2.NewReader(r, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "tile: bzip2 %s", path)
		}
		defer bz.Close()
		r = bz
	}

	var hdr tileHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, errors.Wrapf(err, "tile: header %s", path)
	}
	if hdr.Magic != tileMagic || hdr.Version != tileVersion {
		return nil, errors.Errorf("tile: %s is not a tile artifact", path)
	}

	t := &GraphTile{GraphID: geo.GraphID(hdr.GraphID)}

	for i := uint32(0); i < hdr.NodeCount; i++ {
		var rec nodeInfoRecord
		if err := binary.Read(r, binary.LittleEndian, &rec); err != nil {
			return nil, errors.Wrapf(err, "tile: node %d of %s", i, path)
		}
		t.Nodes = append(t.Nodes, NodeInfo{
			Lat:            rec.Lat,
			Lng:            rec.Lng,
			EdgeIndex:      rec.EdgeIndex,
			EdgeCount:      rec.EdgeCount,
			DriveableCount: rec.DriveableCount,
			BestClass:      pkg.RoadClass(rec.BestClass),
			AccessMask:     rec.AccessMask,
			Type:           pkg.NodeType(rec.Type),
			Intersection:   rec.Flags&nodeFlagIntersection != 0,
			TrafficSignal:  rec.Flags&nodeFlagTrafficSignal != 0,
		})
	}

	for i := uint32(0); i < hdr.DirectedEdgeCount; i++ {
		var rec directedEdgeRecord
		if err := binary.Read(r, binary.LittleEndian, &rec); err != nil {
			return nil, errors.Wrapf(err, "tile: directed edge %d of %s", i, path)
		}
		t.DirectedEdges = append(t.DirectedEdges, DirectedEdge{
			EdgeInfoOffset:  rec.EdgeInfoOffset,
			EndNode:         geo.GraphID(rec.EndNode),
			Length:          rec.Length,
			Speed:           rec.Speed,
			Use:             pkg.Use(rec.Use),
			Classification:  pkg.RoadClass(rec.Classification),
			LocalEdgeIndex:  rec.LocalEdgeIndex,
			RestrictionMask: rec.RestrictionMask,
			Forward:         rec.Flags&edgeFlagForward != 0,
			NotThru:         rec.Flags&edgeFlagNotThru != 0,
			Internal:        rec.Flags&edgeFlagInternal != 0,
			TrafficSignal:   rec.Flags&edgeFlagTrafficSignal != 0,
			ExitSign:        rec.Flags&edgeFlagExitSign != 0,
			ForwardAccess:   rec.Flags&edgeFlagForwardAccess != 0,
			ReverseAccess:   rec.Flags&edgeFlagReverseAccess != 0,
		})
	}

	for i := uint32(0); i < hdr.EdgeInfoCount; i++ {
		var source, target uint64
		if err := binary.Read(r, binary.LittleEndian, &source); err != nil {
			return nil, errors.Wrapf(err, "tile: edge info %d of %s", i, path)
		}
		if err := binary.Read(r, binary.LittleEndian, &target); err != nil {
			return nil, errors.Wrapf(err, "tile: edge info %d of %s", i, path)
		}
		encoded, err := readBytes(r)
		if err != nil {
			return nil, errors.Wrapf(err, "tile: edge info shape %d of %s", i, path)
		}
		coords, _, err := polyline.DecodeCoords(encoded)
		if err != nil {
			return nil, errors.Wrapf(err, "tile: edge info shape %d of %s", i, path)
		}
		shape := make([]geo.Coordinate, len(coords))
		for j, c := range coords {
			shape[j] = geo.NewCoordinate(c[0], c[1])
		}
		var nameCount uint32
		if err := binary.Read(r, binary.LittleEndian, &nameCount); err != nil {
			return nil, errors.Wrapf(err, "tile: edge info names %d of %s", i, path)
		}
		names := make([]string, 0, nameCount)
		for j := uint32(0); j < nameCount; j++ {
			name, err := readBytes(r)
			if err != nil {
				return nil, errors.Wrapf(err, "tile: edge info name %d of %s", i, path)
			}
			names = append(names, string(name))
		}
		t.EdgeInfos = append(t.EdgeInfos, EdgeInfo{
			SourceNode: geo.GraphID(source),
			TargetNode: geo.GraphID(target),
			Shape:      shape,
			Names:      names,
		})
	}

	for i := uint32(0); i < hdr.SignCount; i++ {
		var idx uint32
		if err := binary.Read(r, binary.LittleEndian, &idx); err != nil {
			return nil, errors.Wrapf(err, "tile: sign %d of %s", i, path)
		}
		var signType uint8
		if err := binary.Read(r, binary.LittleEndian, &signType); err != nil {
			return nil, errors.Wrapf(err, "tile: sign %d of %s", i, path)
		}
		text, err := readBytes(r)
		if err != nil {
			return nil, errors.Wrapf(err, "tile: sign %d of %s", i, path)
		}
		t.Signs = append(t.Signs, Sign{
			DirectedEdgeIndex: idx,
			Info:              SignInfo{Type: pkg.SignType(signType), Text: string(text)},
		})
	}

	return t, nil
}
