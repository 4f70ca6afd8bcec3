package wire

import (
	"testing"

	"github.com/oneconcern/dagsync/pkg/blob"
	corestatus "github.com/oneconcern/dagsync/pkg/core/status"
	"github.com/oneconcern/dagsync/pkg/dag"
	dagstatus "github.com/oneconcern/dagsync/pkg/dag/status"
	"github.com/oneconcern/dagsync/pkg/errors"
	"github.com/oneconcern/dagsync/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCodes(t *testing.T) {
	for _, toPin := range []struct {
		name     string
		err      error
		code     string
		sentinel error
	}{
		{
			name:     "sparse graph",
			err:      &dag.SparseGraphError{DagNum: model.DagNumVersionControl, NodeID: "abc"},
			code:     CodeSparseGraph,
			sentinel: dagstatus.ErrSparseGraph,
		},
		{
			name:     "inconsistent dag",
			err:      &dag.InconsistentDagError{DagNum: model.DagNumVersionControl, Reason: "test"},
			code:     CodeInconsistentDag,
			sentinel: dagstatus.ErrInconsistentDag,
		},
		{
			name:     "unsupported dag",
			err:      model.ErrUnsupportedDag.WrapMessage("dagnum 9"),
			code:     CodeUnsupportedDag,
			sentinel: corestatus.ErrUnsupportedDag,
		},
		{
			name:     "unrelated repo",
			err:      corestatus.ErrUnrelatedRepo.WrapMessage("other"),
			code:     CodeUnrelatedRepo,
			sentinel: corestatus.ErrUnrelatedRepo,
		},
		{
			name:     "corrupt blob",
			err:      blob.ErrCorrupt,
			code:     CodeCorruptBlob,
			sentinel: blob.ErrCorrupt,
		},
		{
			name:     "internal",
			err:      errors.New("boom"),
			code:     CodeInternal,
			sentinel: ErrRemote,
		},
	} {
		testCase := toPin
		t.Run(testCase.name, func(t *testing.T) {
			wireErr := NewError(testCase.err)
			assert.Equal(t, testCase.code, wireErr.Code)
			assert.Equal(t, testCase.err.Error(), wireErr.Message)

			// through the wire
			data, err := Encode(wireErr)
			require.NoError(t, err)
			var received Error
			require.NoError(t, Decode(data, &received))

			back := received.Err()
			require.ErrorIs(t, back, testCase.sentinel)
			require.ErrorIs(t, back, ErrRemote)
			assert.Contains(t, back.Error(), testCase.err.Error())
		})
	}
}

func TestHint(t *testing.T) {
	h := NewHint("abc", model.KnownGeneration(4))
	assert.False(t, h.Untrusted)
	assert.Equal(t, model.KnownGeneration(4), h.GenerationHint())

	h = NewHint("abc", model.UntrustedGeneration())
	assert.True(t, h.Untrusted)
	assert.True(t, h.GenerationHint().IsUntrusted())
}

func TestEncodeFragment(t *testing.T) {
	root, err := model.NewNode()
	require.NoError(t, err)
	require.NoError(t, root.AddBlob(model.NewBlobID([]byte("x"))))
	require.NoError(t, root.Freeze())
	child, err := model.NewNode(root)
	require.NoError(t, err)
	require.NoError(t, child.Freeze())

	msg := &ReplyFragment{
		DagNum:  model.NewDagNum(model.DagTypeTesting, 3),
		RepoID:  "repo",
		AdminID: "admin",
		Members: []*model.Node{child},
		Fringe:  []model.NodeID{root.ID},
	}
	data, err := Encode(msg)
	require.NoError(t, err)

	var received ReplyFragment
	require.NoError(t, Decode(data, &received))
	require.Len(t, received.Members, 1)
	assert.True(t, child.Equal(received.Members[0]))
	require.NoError(t, received.Members[0].Verify())
	assert.Equal(t, msg.DagNum, received.DagNum)
	assert.Equal(t, msg.Fringe, received.Fringe)
}
