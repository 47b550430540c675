package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/emi-eligibility/internal/core/domain"
	"github.com/kirillkom/emi-eligibility/internal/core/features"
)

type submissionQueueFake struct {
	published []domain.Submission
	err       error
}

func (q *submissionQueueFake) PublishSubmission(_ context.Context, s domain.Submission) error {
	if q.err != nil {
		return q.err
	}
	q.published = append(q.published, s)
	return nil
}

func (q *submissionQueueFake) SubscribeSubmissions(context.Context, func(context.Context, domain.Submission) error) error {
	return errors.New("not implemented")
}

func TestSubmitQueuesNormalizedApplicant(t *testing.T) {
	queue := &submissionQueueFake{}
	uc := NewSubmitApplicationUseCase(queue, testPipeline())

	applicant := features.ReferenceApplicant()
	applicant.Gender = "m"
	sub, err := uc.Submit(context.Background(), applicant)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if sub.ID == "" || sub.SubmittedAt.IsZero() {
		t.Fatalf("expected id and timestamp, got %+v", sub)
	}
	if len(queue.published) != 1 || queue.published[0].Applicant.Gender != "Male" {
		t.Fatalf("expected normalized applicant published, got %+v", queue.published)
	}
}

func TestSubmitRejectsInvalidApplicantBeforePublishing(t *testing.T) {
	queue := &submissionQueueFake{}
	uc := NewSubmitApplicationUseCase(queue, testPipeline())

	applicant := features.ReferenceApplicant()
	applicant.RequestedTenure = 3
	if _, err := uc.Submit(context.Background(), applicant); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if len(queue.published) != 0 {
		t.Fatalf("invalid submissions must not be queued")
	}
}

func TestSubmitAcceptsCategoryFromSchema(t *testing.T) {
	queue := &submissionQueueFake{}
	pipeline := testPipeline()
	pipeline.Schema.Columns = append(pipeline.Schema.Columns, domain.SchemaColumn{Name: "house_type_Hostel", Kind: domain.KindBoolean})
	uc := NewSubmitApplicationUseCase(queue, pipeline)

	applicant := features.ReferenceApplicant()
	applicant.HouseType = "hostel"
	if _, err := uc.Submit(context.Background(), applicant); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if len(queue.published) != 1 || queue.published[0].Applicant.HouseType != "Hostel" {
		t.Fatalf("expected schema spelling published, got %+v", queue.published)
	}
}

func TestSubmitStandardVariantRequiresMaxEMI(t *testing.T) {
	queue := &submissionQueueFake{}
	uc := NewSubmitApplicationUseCase(queue, testPipeline())

	applicant := features.ReferenceApplicant()
	applicant.MaxMonthlyEMI = nil
	_, err := uc.Submit(context.Background(), applicant)
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Field != "max_monthly_emi" {
		t.Fatalf("expected max_monthly_emi validation error, got %v", err)
	}
	if len(queue.published) != 0 {
		t.Fatalf("invalid submissions must not be queued")
	}
}

func TestSubmitPropagatesQueueError(t *testing.T) {
	queueErr := domain.WrapError(domain.ErrTemporary, "nats publish", errors.New("no servers"))
	uc := NewSubmitApplicationUseCase(&submissionQueueFake{err: queueErr}, testPipeline())

	if _, err := uc.Submit(context.Background(), features.ReferenceApplicant()); !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
}

func TestProcessSubmissionKeepsSubmissionID(t *testing.T) {
	store := &storeFake{}
	uc := NewProcessSubmissionUseCase(newTestPredictor(healthyRegistry(), PredictDeps{Store: store}))

	prediction, err := uc.Handle(context.Background(), domain.Submission{ID: "sub-1", Applicant: features.ReferenceApplicant()})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if prediction == nil || prediction.ID != "sub-1" {
		t.Fatalf("expected prediction under submission id, got %+v", prediction)
	}
	if len(store.saved) != 1 || store.saved[0].ID != "sub-1" {
		t.Fatalf("expected prediction stored under submission id")
	}
}

func TestProcessSubmissionAllModelsFailedIsTemporary(t *testing.T) {
	uc := NewProcessSubmissionUseCase(newTestPredictor(newRegistryFake(), PredictDeps{}))
	prediction, err := uc.Handle(context.Background(), domain.Submission{ID: "sub-2", Applicant: features.ReferenceApplicant()})
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	if prediction == nil || len(prediction.Errors) != 2 {
		t.Fatalf("expected failed prediction with both model errors, got %+v", prediction)
	}
}
