package verification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"telecare/care-portal/care-portal-backend/internal/documents"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, doc *documents.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockRepository) GetByID(ctx context.Context, id uuid.UUID) (*documents.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*documents.Document), args.Error(1)
}

func (m *MockRepository) List(ctx context.Context, appointmentID *uuid.UUID, kind *documents.Kind) ([]documents.Document, error) {
	args := m.Called(ctx, appointmentID, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]documents.Document), args.Error(1)
}

func (m *MockRepository) UpdateContent(ctx context.Context, doc *documents.Document) (bool, error) {
	args := m.Called(ctx, doc)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) MarkSigned(ctx context.Context, id uuid.UUID, sig *documents.Signature) (bool, error) {
	args := m.Called(ctx, id, sig)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) FindByHash(ctx context.Context, hash string) (*documents.Document, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*documents.Document), args.Error(1)
}

func TestValidateByHashFound(t *testing.T) {
	repo := new(MockRepository)
	service := NewService(repo, zap.NewNop())

	signedAt := time.Now()
	doc := &documents.Document{
		ID:                 uuid.New(),
		Kind:               documents.KindPrescription,
		Status:             documents.StatusSigned,
		ProfessionalName:   "Dr. Helena Souza",
		PatientName:        "Carlos Pereira Lima",
		CertificateSubject: "CN=Dr. Helena Souza",
		SignedAt:           &signedAt,
		DocumentHash:       "ab12cd",
	}
	repo.On("FindByHash", mock.Anything, "ab12cd").Return(doc, nil)

	result, err := service.ValidateByHash(context.Background(), "ab12cd")

	assert.NoError(t, err)
	assert.True(t, result.Found)
	assert.True(t, result.IsSigned)
	assert.Equal(t, "prescription", result.DocumentKind)
	assert.Equal(t, "CN=Dr. Helena Souza", result.CertificateSubject)
	assert.Equal(t, "Dr. Helena Souza", result.ProfessionalName)
	assert.Equal(t, "Carlos P. L.", result.PatientName)
	repo.AssertExpectations(t)
}

func TestValidateByHashNormalizesInput(t *testing.T) {
	repo := new(MockRepository)
	service := NewService(repo, zap.NewNop())

	repo.On("FindByHash", mock.Anything, "ab12cd").Return(nil, nil)

	result, err := service.ValidateByHash(context.Background(), "  AB12CD  ")

	assert.NoError(t, err)
	assert.False(t, result.Found)
	repo.AssertExpectations(t)
}

func TestValidateByHashMissIsNotAnError(t *testing.T) {
	repo := new(MockRepository)
	service := NewService(repo, zap.NewNop())

	repo.On("FindByHash", mock.Anything, "deadbeef").Return(nil, nil)

	result, err := service.ValidateByHash(context.Background(), "deadbeef")

	assert.NoError(t, err)
	assert.False(t, result.Found)
	assert.False(t, result.IsSigned)
	assert.Empty(t, result.PatientName)
}

func TestValidateByHashEmptyInput(t *testing.T) {
	repo := new(MockRepository)
	service := NewService(repo, zap.NewNop())

	result, err := service.ValidateByHash(context.Background(), "   ")

	assert.NoError(t, err)
	assert.False(t, result.Found)
	repo.AssertNotCalled(t, "FindByHash")
}

func TestValidateByHashRepositoryError(t *testing.T) {
	repo := new(MockRepository)
	service := NewService(repo, zap.NewNop())

	repo.On("FindByHash", mock.Anything, "ab12cd").Return(nil, errors.New("connection reset"))

	result, err := service.ValidateByHash(context.Background(), "ab12cd")

	assert.Error(t, err)
	assert.Nil(t, result)
}

func TestMaskName(t *testing.T) {
	assert.Equal(t, "Carlos P. L.", MaskName("Carlos Pereira Lima"))
	assert.Equal(t, "Ana", MaskName("Ana"))
	assert.Equal(t, "", MaskName(""))
	assert.Equal(t, "José d. S.", MaskName("José da Silva"))
}
