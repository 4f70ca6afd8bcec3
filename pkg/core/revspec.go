package core

import (
	"strings"

	"github.com/oneconcern/dagsync/pkg/core/status"
	"github.com/oneconcern/dagsync/pkg/model"
)

// MinRevPrefix is the shortest id prefix accepted in a revision spec
const MinRevPrefix = 4

// ParseRevSpec parses a revision spec: "<dagnum>:<id prefix>", or an id prefix in the version
// control dag. The dagnum is in hex.
func ParseRevSpec(spec string) (model.DagNum, string, error) {
	spec = strings.TrimSpace(spec)
	dagnum := model.DagNumVersionControl
	prefix := spec
	if i := strings.IndexByte(spec, ':'); i >= 0 {
		d, err := model.ParseDagNum(spec[:i])
		if err != nil {
			return 0, "", status.ErrInvalidRevSpec.Wrap(err)
		}
		dagnum, prefix = d, spec[i+1:]
	}

	prefix = strings.ToLower(prefix)
	if len(prefix) < MinRevPrefix || len(prefix) > model.IDSize {
		return 0, "", status.ErrInvalidRevSpec.WrapMessage("id prefix %q must have %d to %d hex digits", prefix, MinRevPrefix, model.IDSize)
	}
	for i := 0; i < len(prefix); i++ {
		c := prefix[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return 0, "", status.ErrInvalidRevSpec.WrapMessage("id prefix %q is not hex", prefix)
		}
	}
	return dagnum, prefix, nil
}
