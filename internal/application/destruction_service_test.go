package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmatrace/trace-engine/internal/domain"
	apperrors "github.com/pharmatrace/trace-engine/pkg/errors"
	"github.com/pharmatrace/trace-engine/pkg/logging"
)

func newDestructionFixture(qty int64) (*DestructionService, *fakeBatchRepo, *fakeDestructionRepo, *recordingRecorder) {
	batches := newFakeBatchRepo(domain.NewBatch("B-1", "P-1", "LOT-1", qty))
	requests := newFakeDestructionRepo()
	recorder := &recordingRecorder{}
	svc := NewDestructionService(requests, batches, recorder, 0, logging.NewNop(), nil)
	return svc, batches, requests, recorder
}

func initiate(quantity int64) InitiateDestructionCommand {
	return InitiateDestructionCommand{BatchID: "B-1", Quantity: quantity, Reason: domain.DestructionReasonExpired}
}

func TestDestructionService_InitiateThreshold(t *testing.T) {
	tests := []struct {
		name     string
		quantity int64
		want     domain.DestructionStatus
	}{
		{"below threshold is self approved", 99, domain.DestructionApproved},
		{"at threshold waits for approval", 100, domain.DestructionPendingApproval},
		{"above threshold waits for approval", 150, domain.DestructionPendingApproval},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, batches, _, _ := newDestructionFixture(200)

			dto, err := svc.Initiate(context.Background(), "user-1", initiate(tt.quantity))
			require.NoError(t, err)
			assert.Equal(t, string(tt.want), dto.Status)
			assert.Equal(t, int64(200), batches.qty("B-1"), "initiation never moves stock")
		})
	}
}

func TestDestructionService_InitiateErrors(t *testing.T) {
	svc, _, _, _ := newDestructionFixture(10)
	ctx := context.Background()

	_, err := svc.Initiate(ctx, "user-1", initiate(11))
	assert.ErrorIs(t, err, apperrors.KindInsufficientQuantity)
	assert.ErrorIs(t, err, domain.ErrInsufficientQuantity)

	_, err = svc.Initiate(ctx, "user-1", InitiateDestructionCommand{BatchID: "missing", Quantity: 1, Reason: domain.DestructionReasonExpired})
	assert.ErrorIs(t, err, apperrors.KindNotFound)

	_, err = svc.Initiate(ctx, "user-1", initiate(0))
	assert.ErrorIs(t, err, apperrors.KindValidation)

	_, err = svc.Initiate(ctx, "user-1", InitiateDestructionCommand{BatchID: "B-1", Quantity: 1, Reason: "BORED"})
	assert.ErrorIs(t, err, apperrors.KindValidation)
}

func TestDestructionService_ApproveAndComplete(t *testing.T) {
	svc, batches, _, recorder := newDestructionFixture(200)
	ctx := context.Background()

	dto, err := svc.Initiate(ctx, "user-1", initiate(120))
	require.NoError(t, err)

	_, err = svc.Complete(ctx, "user-2", dto.ID, CompleteDestructionCommand{})
	assert.ErrorIs(t, err, apperrors.KindInvalidState)
	assert.Equal(t, int64(200), batches.qty("B-1"))

	approved, err := svc.Approve(ctx, "manager-1", dto.ID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.DestructionApproved), approved.Status)
	assert.Equal(t, "manager-1", approved.ApprovedBy)

	done, err := svc.Complete(ctx, "user-2", dto.ID, CompleteDestructionCommand{CertificateNumber: "CERT-9", ReadPoint: "urn:epc:id:sgln:0614141.00001.0"})
	require.NoError(t, err)
	assert.Equal(t, string(domain.DestructionCompleted), done.Status)
	assert.Equal(t, "CERT-9", done.CertificateNumber)
	assert.Equal(t, "evt-1", done.TraceEventID)
	assert.Equal(t, int64(80), batches.qty("B-1"))

	require.Len(t, recorder.calls, 1)
	assert.Equal(t, domain.BizStepDestroying, recorder.calls[0].BizStep)
	assert.Equal(t, domain.DispositionDestroyed, recorder.calls[0].Disposition)
	assert.Equal(t, domain.ActionDelete, recorder.calls[0].Action)
	assert.Equal(t, []string{"B-1"}, recorder.epcs[0])

	_, err = svc.Complete(ctx, "user-2", dto.ID, CompleteDestructionCommand{})
	assert.ErrorIs(t, err, apperrors.KindInvalidState)
	assert.Equal(t, int64(80), batches.qty("B-1"), "a completed request is never reserved twice")
}

func TestDestructionService_Reject(t *testing.T) {
	svc, batches, _, _ := newDestructionFixture(200)
	ctx := context.Background()

	dto, err := svc.Initiate(ctx, "user-1", initiate(150))
	require.NoError(t, err)

	rejected, err := svc.Reject(ctx, "manager-1", dto.ID, "not expired")
	require.NoError(t, err)
	assert.Equal(t, string(domain.DestructionRejected), rejected.Status)
	assert.Equal(t, "not expired", rejected.RejectionReason)
	assert.Equal(t, int64(200), batches.qty("B-1"))

	_, err = svc.Approve(ctx, "manager-1", dto.ID)
	assert.ErrorIs(t, err, apperrors.KindInvalidState)
}

func TestDestructionService_CompleteRechecksStock(t *testing.T) {
	svc, batches, _, _ := newDestructionFixture(50)
	ctx := context.Background()

	dto, err := svc.Initiate(ctx, "user-1", initiate(40))
	require.NoError(t, err)

	// stock dropped between initiation and completion
	require.NoError(t, batches.TryReserve(ctx, "B-1", 20))

	_, err = svc.Complete(ctx, "user-1", dto.ID, CompleteDestructionCommand{})
	assert.ErrorIs(t, err, apperrors.KindInsufficientQuantity)
	assert.Equal(t, int64(30), batches.qty("B-1"))

	got, err := svc.Get(ctx, dto.ID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.DestructionApproved), got.Status)
}

func TestDestructionService_CompleteSaveFailureReleases(t *testing.T) {
	svc, batches, requests, _ := newDestructionFixture(50)
	ctx := context.Background()

	dto, err := svc.Initiate(ctx, "user-1", initiate(40))
	require.NoError(t, err)

	requests.updateErr = errors.New("write concern timeout")
	_, err = svc.Complete(ctx, "user-1", dto.ID, CompleteDestructionCommand{})
	assert.ErrorIs(t, err, apperrors.KindStorage)
	assert.Equal(t, int64(50), batches.qty("B-1"))
	assert.Equal(t, 1, batches.releases)

	// the claim is released, so the request can be completed later
	requests.updateErr = nil
	_, err = svc.Complete(ctx, "user-1", dto.ID, CompleteDestructionCommand{})
	require.NoError(t, err)
	assert.Equal(t, int64(10), batches.qty("B-1"))
}

// staleDestructionRepo serves one fixed snapshot to every read and claim, as
// a lagging replica or an expired claim would
type staleDestructionRepo struct {
	*fakeDestructionRepo
	snapshot domain.DestructionRequest
}

func (r *staleDestructionRepo) FindByID(context.Context, string) (*domain.DestructionRequest, error) {
	cp := r.snapshot
	return &cp, nil
}

func (r *staleDestructionRepo) Claim(context.Context, string, domain.DestructionStatus, time.Duration) (*domain.DestructionRequest, error) {
	cp := r.snapshot
	return &cp, nil
}

func newStaleDestructionFixture(t *testing.T, qty, quantity int64) (*DestructionService, *fakeBatchRepo, *fakeDestructionRepo, string) {
	t.Helper()
	svc, batches, requests, _ := newDestructionFixture(qty)
	dto, err := svc.Initiate(context.Background(), "user-1", initiate(quantity))
	require.NoError(t, err)

	snapshot, err := requests.FindByID(context.Background(), dto.ID)
	require.NoError(t, err)
	stale := &staleDestructionRepo{fakeDestructionRepo: requests, snapshot: *snapshot}
	return NewDestructionService(stale, batches, nil, 0, logging.NewNop(), nil), batches, requests, dto.ID
}

func TestDestructionService_CompleteFromStaleSnapshotReservesOnce(t *testing.T) {
	svc, batches, requests, id := newStaleDestructionFixture(t, 100, 40)
	ctx := context.Background()

	_, err := svc.Complete(ctx, "user-1", id, CompleteDestructionCommand{})
	require.NoError(t, err)
	assert.Equal(t, int64(60), batches.qty("B-1"))

	_, err = svc.Complete(ctx, "user-2", id, CompleteDestructionCommand{})
	assert.ErrorIs(t, err, apperrors.KindInvalidState)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Equal(t, int64(60), batches.qty("B-1"), "the losing completion releases its reservation")
	assert.Equal(t, 1, batches.releases)
	assert.Equal(t, domain.DestructionCompleted, requests.status(id))
	assert.Equal(t, 1, requests.updates)
}

func TestDestructionService_ApproveAndRejectRace(t *testing.T) {
	svc, batches, requests, id := newStaleDestructionFixture(t, 200, 150)
	ctx := context.Background()

	_, err := svc.Approve(ctx, "manager-1", id)
	require.NoError(t, err)

	_, err = svc.Reject(ctx, "manager-2", id, "duplicate")
	assert.ErrorIs(t, err, apperrors.KindInvalidState)
	assert.Equal(t, domain.DestructionApproved, requests.status(id))
	assert.Equal(t, int64(200), batches.qty("B-1"))
}

func TestDestructionService_ConcurrentCompleteReservesOnce(t *testing.T) {
	svc, batches, requests, recorder := newDestructionFixture(100)
	ctx := context.Background()

	dto, err := svc.Initiate(ctx, "user-1", initiate(40))
	require.NoError(t, err)

	const callers = 10
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Complete(ctx, "user-1", dto.ID, CompleteDestructionCommand{})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, apperrors.KindInvalidState)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, int64(60), batches.qty("B-1"))
	assert.Equal(t, domain.DestructionCompleted, requests.status(dto.ID))
	assert.Len(t, recorder.calls, 1)
}

func TestDestructionService_CompleteWhileClaimed(t *testing.T) {
	svc, batches, requests, _ := newDestructionFixture(100)
	ctx := context.Background()

	dto, err := svc.Initiate(ctx, "user-1", initiate(40))
	require.NoError(t, err)

	// another caller holds the claim
	_, err = requests.Claim(ctx, dto.ID, domain.DestructionApproved, time.Minute)
	require.NoError(t, err)

	_, err = svc.Complete(ctx, "user-2", dto.ID, CompleteDestructionCommand{})
	assert.ErrorIs(t, err, apperrors.KindInvalidState)
	assert.Contains(t, err.Error(), "in progress")
	assert.Equal(t, int64(100), batches.qty("B-1"))
	assert.Zero(t, batches.reserves)

	_, err = svc.Complete(ctx, "user-2", "missing", CompleteDestructionCommand{})
	assert.ErrorIs(t, err, apperrors.KindNotFound)
	assert.ErrorIs(t, err, domain.ErrDestructionNotFound)
}

func TestDestructionService_RecorderFailureDoesNotFailCompletion(t *testing.T) {
	svc, batches, _, recorder := newDestructionFixture(50)
	recorder.err = errors.New("event store down")
	ctx := context.Background()

	dto, err := svc.Initiate(ctx, "user-1", initiate(10))
	require.NoError(t, err)

	done, err := svc.Complete(ctx, "user-1", dto.ID, CompleteDestructionCommand{})
	require.NoError(t, err)
	assert.Empty(t, done.TraceEventID)
	assert.Equal(t, int64(40), batches.qty("B-1"))
}

func TestDestructionService_ListPending(t *testing.T) {
	svc, _, _, _ := newDestructionFixture(1000)
	ctx := context.Background()

	_, err := svc.Initiate(ctx, "user-1", initiate(5))
	require.NoError(t, err)
	pending, err := svc.Initiate(ctx, "user-1", initiate(500))
	require.NoError(t, err)

	list, err := svc.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, pending.ID, list[0].ID)

	_, err = svc.Get(ctx, "nope")
	assert.ErrorIs(t, err, apperrors.KindNotFound)
	assert.ErrorIs(t, err, domain.ErrDestructionNotFound)
}
