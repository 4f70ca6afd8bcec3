package model

import (
	"fmt"
	"strconv"
	"strings"
)

// DagNum identifies a DAG within a repository.
//
// Layout, from the least significant bit:
//
//	bits 0-3:   dag type
//	bits 8-15:  flags
//	bits 16-47: instance, to tell apart several DAGs of the same type
//
// All other bits must be zero.
type DagNum uint64

// Dag types
const (
	DagTypeVersionControl DagNum = 0x1
	DagTypeWorkItems      DagNum = 0x2
	DagTypeTesting        DagNum = 0x3

	dagTypeMask DagNum = 0xf
)

// Dag flags
const (
	// FlagHardwiredTemplate marks a DAG that ships with the software and is never synchronized
	FlagHardwiredTemplate DagNum = 1 << 8

	dagFlagMask      DagNum = 0xff << 8
	dagKnownFlags           = FlagHardwiredTemplate
	dagInstanceShift        = 16
	dagInstanceMask  DagNum = 0xffffffff << dagInstanceShift
	dagNumHexDigits         = 16
)

// Well-known dagnums
var (
	DagNumVersionControl = NewDagNum(DagTypeVersionControl, 0)
	DagNumWorkItems      = NewDagNum(DagTypeWorkItems, 0)
	DagNumTesting        = NewDagNum(DagTypeTesting, 0)
)

// NewDagNum builds a dagnum from a type, an instance number and optional flags
func NewDagNum(typ DagNum, instance uint32, flags ...DagNum) DagNum {
	d := (typ & dagTypeMask) | DagNum(instance)<<dagInstanceShift
	for _, f := range flags {
		d |= f & dagFlagMask
	}
	return d
}

// Type of the DAG
func (d DagNum) Type() DagNum {
	return d & dagTypeMask
}

// Instance number of the DAG, among DAGs of the same type
func (d DagNum) Instance() uint32 {
	return uint32((d & dagInstanceMask) >> dagInstanceShift)
}

// IsHardwiredTemplate tells if this DAG is excluded from synchronization
func (d DagNum) IsHardwiredTemplate() bool {
	return d&FlagHardwiredTemplate != 0
}

// Validate checks that the dagnum has a known type and only known flags
func (d DagNum) Validate() error {
	switch d.Type() {
	case DagTypeVersionControl, DagTypeWorkItems, DagTypeTesting:
	default:
		return ErrUnsupportedDag.WrapMessage("dagnum %s has unknown type %d", d, uint64(d.Type()))
	}
	if d&dagFlagMask&^dagKnownFlags != 0 {
		return ErrUnsupportedDag.WrapMessage("dagnum %s has unknown flags", d)
	}
	if d&^(dagTypeMask|dagFlagMask|dagInstanceMask) != 0 {
		return ErrUnsupportedDag.WrapMessage("dagnum %s has reserved bits set", d)
	}
	return nil
}

// String yields the fixed-width hex representation of the dagnum
func (d DagNum) String() string {
	return fmt.Sprintf("%0*x", dagNumHexDigits, uint64(d))
}

// TypeName yields a human readable name for the type of DAG
func (d DagNum) TypeName() string {
	switch d.Type() {
	case DagTypeVersionControl:
		return "version-control"
	case DagTypeWorkItems:
		return "work-items"
	case DagTypeTesting:
		return "testing"
	default:
		return "unknown"
	}
}

// ParseDagNum parses the hex representation of a dagnum and validates it
func ParseDagNum(s string) (DagNum, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimSpace(s), "0x"), 16, 64)
	if err != nil {
		return 0, ErrUnsupportedDag.Wrap(err)
	}
	d := DagNum(v)
	return d, d.Validate()
}

// DagNums is a sortable slice of dagnums
type DagNums []DagNum

func (d DagNums) Len() int           { return len(d) }
func (d DagNums) Less(i, j int) bool { return d[i] < d[j] }
func (d DagNums) Swap(i, j int)      { d[i], d[j] = d[j], d[i] }

// Syncable filters out hardwired templates
func (d DagNums) Syncable() DagNums {
	res := make(DagNums, 0, len(d))
	for _, dagnum := range d {
		if !dagnum.IsHardwiredTemplate() {
			res = append(res, dagnum)
		}
	}
	return res
}
