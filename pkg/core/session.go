package core

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oneconcern/dagsync/pkg/core/status"
	"github.com/oneconcern/dagsync/pkg/hint"
	"github.com/oneconcern/dagsync/pkg/model"
	"github.com/oneconcern/dagsync/pkg/repo"
	"github.com/oneconcern/dagsync/pkg/wire"
	"go.uber.org/zap"
)

// Direction of a sync session, seen from the local repository
type Direction uint8

// Supported directions
const (
	DirectionPush Direction = iota + 1
	DirectionPull
)

func (d Direction) String() string {
	switch d {
	case DirectionPush:
		return "push"
	case DirectionPull:
		return "pull"
	default:
		return "invalid"
	}
}

// IsValid tells if the direction is known
func (d Direction) IsValid() bool {
	return d == DirectionPush || d == DirectionPull
}

// State of a sync session
type State uint8

// Session states
const (
	StateBegun State = iota + 1
	StateAdded
	StateCommitted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateBegun:
		return "begun"
	case StateAdded:
		return "added"
	case StateCommitted:
		return "committed"
	case StateAborted:
		return "aborted"
	default:
		return "invalid"
	}
}

// IsClosed tells if the state is final
func (s State) IsClosed() bool {
	return s == StateCommitted || s == StateAborted
}

// target is a dag registered in a session, with the nodes to start from. No seed means all the
// leaves of the source.
type target struct {
	dagnum model.DagNum
	seeds  []wire.NodeGeneration
}

// Session synchronizes DAGs between a local repository and a remote peer.
//
// A session is opened with Begin, takes dags or revisions with Add and AddRev, then is closed
// with Commit or Abort. Sessions are not reusable.
type Session struct {
	local     *repo.Repository
	peer      *countingPeer
	direction Direction
	settings  Settings
	estimator *hint.Estimator
	remote    *wire.ReplyDescribe
	available model.DagNums
	l         *zap.Logger

	mx             sync.Mutex
	state          State
	committing     bool
	abortRequested bool
	cancel         context.CancelFunc
	targets        []*target
}

// Begin a sync session with some remote peer.
//
// The handshake checks that both repositories are related, and collects the dags available on
// the sending side. Hardwired templates are never available.
func Begin(ctx context.Context, local *repo.Repository, remote wire.Peer, direction Direction, opts ...Option) (*Session, error) {
	if !direction.IsValid() {
		return nil, status.ErrProtocol.WrapMessage("invalid sync direction %d", direction)
	}
	settings := defaultSettings(opts)
	desc := local.Descriptor()

	reply, err := remote.Describe(ctx, &wire.RequestDescribe{
		RepoID:  desc.RepoID,
		AdminID: desc.AdminID,
		Version: wire.ProtocolVersion,
	})
	if err != nil {
		return nil, err
	}
	if reply.Version != wire.ProtocolVersion {
		return nil, status.ErrProtocol.WrapMessage("remote speaks %q, expected %q", reply.Version, wire.ProtocolVersion)
	}
	if reply.RepoID != desc.RepoID || reply.AdminID != desc.AdminID {
		return nil, status.ErrUnrelatedRepo.WrapMessage("local repository %s, remote repository %s", desc.RepoID, reply.RepoID)
	}

	var source model.DagNums
	if direction == DirectionPush {
		if source, err = local.ListDagNums(ctx); err != nil {
			return nil, err
		}
	} else {
		source = reply.DagNums
	}

	s := &Session{
		local:     local,
		peer:      &countingPeer{Peer: remote, metrics: settings.metrics},
		direction: direction,
		settings:  settings,
		estimator: hint.NewEstimator(hint.Margin(settings.margin)),
		remote:    reply,
		state:     StateBegun,
		l: settings.l.With(
			zap.Stringer("direction", direction),
			zap.String("local", desc.Name),
			zap.String("remote", reply.Name),
		),
	}
	for _, dagnum := range source.Syncable() {
		if dagnum.Validate() != nil || !settings.accepts(dagnum) {
			continue
		}
		s.available = append(s.available, dagnum)
	}
	sort.Sort(s.available)

	s.l.Debug("sync session begun", zap.Int("dags", len(s.available)))
	return s, nil
}

// Direction of the session
func (s *Session) Direction() Direction {
	return s.direction
}

// Remote describes the remote repository
func (s *Session) Remote() wire.ReplyDescribe {
	return *s.remote
}

// Available lists the dags which may be synchronized, on the sending side
func (s *Session) Available() model.DagNums {
	res := make(model.DagNums, len(s.available))
	copy(res, s.available)
	return res
}

// State of the session
func (s *Session) State() State {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.state
}

// Add a whole dag to the session: all its leaves are synchronized
func (s *Session) Add(dagnum model.DagNum) error {
	if err := s.checkDag(dagnum); err != nil {
		return err
	}
	s.mx.Lock()
	defer s.mx.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	if t := s.find(dagnum); t != nil {
		t.seeds = nil
	} else {
		s.targets = append(s.targets, &target{dagnum: dagnum})
	}
	s.state = StateAdded
	return nil
}

// AddRev adds a single revision to the session, i.e. a node with all its ancestors.
//
// The revision spec is either "<dagnum>:<id prefix>", or an id prefix in the version control dag.
// The prefix is resolved on the sending side.
func (s *Session) AddRev(ctx context.Context, revSpec string) error {
	dagnum, prefix, err := ParseRevSpec(revSpec)
	if err != nil {
		return err
	}
	if err = s.checkDag(dagnum); err != nil {
		return err
	}
	s.mx.Lock()
	err = s.checkOpen()
	s.mx.Unlock()
	if err != nil {
		return err
	}

	seed, err := s.resolve(ctx, dagnum, prefix)
	if err != nil {
		return err
	}

	s.mx.Lock()
	defer s.mx.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	t := s.find(dagnum)
	switch {
	case t == nil:
		s.targets = append(s.targets, &target{dagnum: dagnum, seeds: []wire.NodeGeneration{seed}})
	case len(t.seeds) == 0:
		// the whole dag is already registered
	default:
		t.seeds = append(t.seeds, seed)
	}
	s.state = StateAdded
	return nil
}

func (s *Session) resolve(ctx context.Context, dagnum model.DagNum, prefix string) (wire.NodeGeneration, error) {
	if s.direction == DirectionPull {
		reply, err := s.peer.Resolve(ctx, &wire.RequestResolve{DagNum: dagnum, Prefix: prefix})
		if err != nil {
			return wire.NodeGeneration{}, err
		}
		if err := reply.ID.Validate(); err != nil {
			return wire.NodeGeneration{}, status.ErrProtocol.Wrap(err)
		}
		return wire.NodeGeneration{ID: reply.ID, Generation: reply.Generation}, nil
	}

	store, err := s.local.Store(dagnum)
	if err != nil {
		return wire.NodeGeneration{}, err
	}
	id, err := store.Resolve(ctx, prefix)
	if err != nil {
		return wire.NodeGeneration{}, err
	}
	node, err := store.Fetch(ctx, id)
	if err != nil {
		return wire.NodeGeneration{}, err
	}
	return wire.NodeGeneration{ID: node.ID, Generation: node.Generation}, nil
}

// Commit the session: all registered dags are synchronized in turn. Committing a session with
// no registered dag does nothing.
//
// Any failure aborts the session. Nodes are stored on the receiving side ancestors first: an
// interrupted commit leaves the receiver with a consistent prefix of the transfer.
func (s *Session) Commit(ctx context.Context) (*Stats, error) {
	s.mx.Lock()
	if err := s.checkOpen(); err != nil {
		s.mx.Unlock()
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.cancel = cancel
	s.committing = true
	targets := s.targets
	s.mx.Unlock()

	start := time.Now()
	stats := newStats()
	err := s.commit(ctx, targets, stats)
	stats.Duration = time.Since(start)
	stats.RoundTrips = s.peer.dag
	stats.BlobRoundTrips = s.peer.blob

	s.mx.Lock()
	s.committing = false
	if err != nil {
		if s.abortRequested {
			err = status.ErrInterrupted.Wrap(err)
		}
		s.state = StateAborted
	} else {
		s.state = StateCommitted
	}
	s.mx.Unlock()

	s.settings.metrics.session(s.direction, err)
	if err != nil {
		s.l.Warn("sync session aborted", zap.Error(err), statsField(stats))
		return nil, err
	}
	s.settings.metrics.transferred(s.direction, stats)
	s.l.Info("sync session committed", statsField(stats))
	return stats, nil
}

func (s *Session) commit(ctx context.Context, targets []*target, stats *Stats) error {
	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := s.peer.dag
		var err error
		if s.direction == DirectionPush {
			err = s.push(ctx, t, stats)
		} else {
			err = s.pull(ctx, t, stats)
		}
		stats.DagRoundTrips[t.dagnum] = s.peer.dag - start
		if err != nil {
			return err
		}
	}
	return nil
}

// Abort the session. The receiving side is left untouched, unless nodes are already being
// stored by a concurrent Commit: storage then completes and Commit fails.
func (s *Session) Abort() error {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.state.IsClosed() {
		return status.ErrSessionClosed
	}
	if s.committing {
		s.abortRequested = true
		s.cancel()
		return nil
	}
	s.state = StateAborted
	s.l.Debug("sync session aborted")
	return nil
}

func (s *Session) checkOpen() error {
	if s.state.IsClosed() {
		return status.ErrSessionClosed.WrapMessage("session is %s", s.state)
	}
	if s.committing {
		return status.ErrSessionClosed.WrapMessage("session is committing")
	}
	return nil
}

func (s *Session) checkDag(dagnum model.DagNum) error {
	if err := checkSyncable(dagnum); err != nil {
		return err
	}
	if !s.settings.accepts(dagnum) {
		return &UnsupportedDagError{DagNum: dagnum, Reason: "excluded from this session"}
	}
	return nil
}

func (s *Session) find(dagnum model.DagNum) *target {
	for _, t := range s.targets {
		if t.dagnum == dagnum {
			return t
		}
	}
	return nil
}

// exchange tracks the progress of the synchronization of one dag, to report failures
type exchange struct {
	peer   *countingPeer
	dagnum model.DagNum
	start  int
}

func (s *Session) exchange(dagnum model.DagNum) *exchange {
	return &exchange{peer: s.peer, dagnum: dagnum, start: s.peer.dag}
}

func (x *exchange) fail(step string, err error) error {
	return &SyncError{DagNum: x.dagnum, Round: x.peer.dag - x.start, Step: step, Err: err}
}
