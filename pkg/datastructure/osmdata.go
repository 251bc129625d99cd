package datastructure

import (
	"bytes"
	"encoding/gob"
	"os"

	"github.com/lintang-b-s/tilegraph/pkg"
	"github.com/pkg/errors"
)

// OSMRestriction is a simple turn restriction keyed off its from way.
type OSMRestriction struct {
	Type  pkg.RestrictionType
	DayOn pkg.DOW
	// osm id of the via node
	ViaOsmID uint64
	// canonical node index of the via node, resolved by the driver
	// after the graph sort
	ViaNode Index
	// osm id of the to way
	To uint64
}

// NameTable maps string offsets to strings. Offset 0 is the empty
// string; way records store offsets so they stay fixed size.
type NameTable struct {
	names []string
	index map[string]uint32
}

func NewNameTable() *NameTable {
	return &NameTable{
		names: []string{""},
		index: map[string]uint32{"": 0},
	}
}

// Add interns s and returns its offset.
func (nt *NameTable) Add(s string) uint32 {
	if off, ok := nt.index[s]; ok {
		return off
	}
	off := uint32(len(nt.names))
	nt.names = append(nt.names, s)
	nt.index[s] = off
	return off
}

// Name returns the string at offset off, "" when out of range.
func (nt *NameTable) Name(off uint32) string {
	if off >= uint32(len(nt.names)) {
		return ""
	}
	return nt.names[off]
}

func (nt *NameTable) Size() int {
	return len(nt.names)
}

func (nt *NameTable) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(nt.names); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (nt *NameTable) GobDecode(b []byte) error {
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&nt.names); err != nil {
		return err
	}
	nt.index = make(map[string]uint32, len(nt.names))
	for i, s := range nt.names {
		nt.index[s] = uint32(i)
	}
	return nil
}

// OSMData holds the sequence file names and the in-memory metadata
// maps the tile builder consults.
type OSMData struct {
	WaysFile     string
	WayNodesFile string

	// from way id to its restrictions
	Restrictions map[uint64][]OSMRestriction
	// from way id to relation refs ("ref|direction" joined with ";")
	WayRef map[uint64]string

	// node tag values keyed by osm node id
	NodeRef    map[uint64]string
	NodeName   map[uint64]string
	NodeExitTo map[uint64]string

	RefOffsetMap  *NameTable
	NameOffsetMap *NameTable
}

func NewOSMData(waysFile, wayNodesFile string) *OSMData {
	return &OSMData{
		WaysFile:      waysFile,
		WayNodesFile:  wayNodesFile,
		Restrictions:  make(map[uint64][]OSMRestriction),
		WayRef:        make(map[uint64]string),
		NodeRef:       make(map[uint64]string),
		NodeName:      make(map[uint64]string),
		NodeExitTo:    make(map[uint64]string),
		RefOffsetMap:  NewNameTable(),
		NameOffsetMap: NewNameTable(),
	}
}

// Save gob-encodes the metadata maps (not the sequence files) to path.
func (d *OSMData) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "osmdata: create %s", path)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(d); err != nil {
		return errors.Wrapf(err, "osmdata: encode %s", path)
	}
	return nil
}

func LoadOSMData(path string) (*OSMData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "osmdata: open %s", path)
	}
	defer f.Close()
	d := new(OSMData)
	if err := gob.NewDecoder(f).Decode(d); err != nil {
		return nil, errors.Wrapf(err, "osmdata: decode %s", path)
	}
	return d, nil
}
