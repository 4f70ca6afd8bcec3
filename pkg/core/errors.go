package core

import (
	"fmt"

	"github.com/oneconcern/dagsync/pkg/core/status"
	"github.com/oneconcern/dagsync/pkg/model"
)

// UnsupportedDagError is returned when a dagnum cannot take part in a sync session: its type
// is not recognized, or it is a hardwired template.
type UnsupportedDagError struct {
	DagNum model.DagNum
	Reason string
}

func (e *UnsupportedDagError) Error() string {
	return fmt.Sprintf("%v: dag %s: %s", status.ErrUnsupportedDag, e.DagNum, e.Reason)
}

// Unwrap yields status.ErrUnsupportedDag
func (e *UnsupportedDagError) Unwrap() error {
	return status.ErrUnsupportedDag
}

func checkSyncable(dagnum model.DagNum) error {
	if err := dagnum.Validate(); err != nil {
		return &UnsupportedDagError{DagNum: dagnum, Reason: "unknown dag type or flags"}
	}
	if dagnum.IsHardwiredTemplate() {
		return &UnsupportedDagError{DagNum: dagnum, Reason: "hardwired templates are not transferred"}
	}
	return nil
}

// SyncError reports the dag and the step of a failed sync session
type SyncError struct {
	DagNum model.DagNum
	Round  int
	Step   string
	Err    error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync of dag %s failed at round trip %d (%s): %v", e.DagNum, e.Round, e.Step, e.Err)
}

// Unwrap the cause of the failure
func (e *SyncError) Unwrap() error {
	return e.Err
}
