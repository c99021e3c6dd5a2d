package certificates

import (
	"context"
	"crypto/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// MockRepository is a mock implementation of the Repository interface
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, cert *Certificate) error {
	args := m.Called(ctx, cert)
	return args.Error(0)
}

func (m *MockRepository) GetByID(ctx context.Context, id, userID uuid.UUID) (*Certificate, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Certificate), args.Error(1)
}

func (m *MockRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]Certificate, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]Certificate), args.Error(1)
}

func (m *MockRepository) Update(ctx context.Context, cert *Certificate) error {
	args := m.Called(ctx, cert)
	return args.Error(0)
}

func (m *MockRepository) Delete(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, id, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) MarkExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func newTestService(t *testing.T, repo Repository) *Service {
	t.Helper()
	master := make([]byte, 32)
	_, err := rand.Read(master)
	assert.NoError(t, err)
	return NewService(repo, master, 10*time.Second, zap.NewNop())
}

func TestSaveValidCertificate(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(t, mockRepo)
	ctx := context.Background()
	userID := uuid.New()
	pfx := newTestPFX(t, "Dr. Helena Souza", time.Now().Add(24*time.Hour), "s3cret")

	mockRepo.On("Create", ctx, mock.AnythingOfType("*certificates.Certificate")).Return(nil)

	cert, err := service.Save(ctx, userID, pfx, "s3cret", "My signing cert", false)

	assert.NoError(t, err)
	assert.Equal(t, userID, cert.UserID)
	assert.Equal(t, "My signing cert", cert.DisplayName)
	assert.Len(t, cert.Thumbprint, 64)
	assert.False(t, cert.QuickUse)
	assert.NotEmpty(t, cert.EncryptedPFX)
	assert.NotEqual(t, pfx, cert.EncryptedPFX)
	assert.Empty(t, cert.QuickUseMaterial)

	mockRepo.AssertExpectations(t)
}

func TestSaveQuickUseStoresMaterial(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(t, mockRepo)
	ctx := context.Background()
	pfx := newTestPFX(t, "Dr. Helena Souza", time.Now().Add(24*time.Hour), "s3cret")

	mockRepo.On("Create", ctx, mock.AnythingOfType("*certificates.Certificate")).Return(nil)

	cert, err := service.Save(ctx, uuid.New(), pfx, "s3cret", "", true)

	assert.NoError(t, err)
	assert.True(t, cert.QuickUse)
	assert.NotEmpty(t, cert.QuickUseMaterial)
	// Display name falls back to the certificate CN.
	assert.Equal(t, "Dr. Helena Souza", cert.DisplayName)
}

func TestSaveRejectsWrongPassword(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(t, mockRepo)
	pfx := newTestPFX(t, "Dr. Helena Souza", time.Now().Add(24*time.Hour), "s3cret")

	_, err := service.Save(context.Background(), uuid.New(), pfx, "wrong", "x", false)

	assert.ErrorIs(t, err, ErrInvalidCertificate)
	mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSaveRejectsExpiredCertificate(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(t, mockRepo)
	pfx := newTestPFX(t, "Dr. Helena Souza", time.Now().Add(time.Minute), "s3cret")
	service.now = func() time.Time { return time.Now().Add(time.Hour) }

	_, err := service.Save(context.Background(), uuid.New(), pfx, "s3cret", "x", false)

	assert.ErrorIs(t, err, ErrCertificateExpired)
	mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestUpdateNotOwned(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(t, mockRepo)
	ctx := context.Background()
	id, userID := uuid.New(), uuid.New()

	mockRepo.On("GetByID", ctx, id, userID).Return(nil, nil)

	_, err := service.Update(ctx, id, userID, UpdateRequest{})

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateEnableQuickUseRequiresPassword(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(t, mockRepo)
	ctx := context.Background()
	id, userID := uuid.New(), uuid.New()
	existing := &Certificate{ID: id, UserID: userID, QuickUse: false}

	mockRepo.On("GetByID", ctx, id, userID).Return(existing, nil)

	enable := true
	_, err := service.Update(ctx, id, userID, UpdateRequest{QuickUse: &enable})

	assert.ErrorIs(t, err, ErrPasswordRequired)
	mockRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestUpdateDisableQuickUseClearsMaterial(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(t, mockRepo)
	ctx := context.Background()
	id, userID := uuid.New(), uuid.New()
	existing := &Certificate{ID: id, UserID: userID, QuickUse: true, QuickUseMaterial: []byte("wrapped")}

	mockRepo.On("GetByID", ctx, id, userID).Return(existing, nil)
	mockRepo.On("Update", ctx, mock.AnythingOfType("*certificates.Certificate")).Return(nil)

	disable := false
	cert, err := service.Update(ctx, id, userID, UpdateRequest{QuickUse: &disable})

	assert.NoError(t, err)
	assert.False(t, cert.QuickUse)
	assert.Empty(t, cert.QuickUseMaterial)
}

func TestResolveSignerPasswordRequired(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(t, mockRepo)
	ctx := context.Background()
	id, userID := uuid.New(), uuid.New()
	existing := &Certificate{ID: id, UserID: userID, QuickUse: false}

	mockRepo.On("GetByID", ctx, id, userID).Return(existing, nil)

	_, err := service.ResolveSigner(ctx, id, userID, "")

	assert.ErrorIs(t, err, ErrPasswordRequired)
}

func TestResolveSignerRoundTrip(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(t, mockRepo)
	ctx := context.Background()
	userID := uuid.New()
	pfx := newTestPFX(t, "Dr. Helena Souza", time.Now().Add(24*time.Hour), "s3cret")

	var saved *Certificate
	mockRepo.On("Create", ctx, mock.AnythingOfType("*certificates.Certificate")).
		Run(func(args mock.Arguments) { saved = args.Get(1).(*Certificate) }).
		Return(nil)

	cert, err := service.Save(ctx, userID, pfx, "s3cret", "cert", false)
	assert.NoError(t, err)

	mockRepo.On("GetByID", ctx, cert.ID, userID).Return(saved, nil)

	sc, err := service.ResolveSigner(ctx, cert.ID, userID, "s3cret")
	assert.NoError(t, err)
	assert.Equal(t, cert.Thumbprint, Thumbprint(sc.Certificate))

	_, err = service.ResolveSigner(ctx, cert.ID, userID, "wrong")
	assert.ErrorIs(t, err, ErrIncorrectPassword)
}

func TestResolveSignerQuickUseWithoutPassword(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(t, mockRepo)
	ctx := context.Background()
	userID := uuid.New()
	pfx := newTestPFX(t, "Dr. Helena Souza", time.Now().Add(24*time.Hour), "s3cret")

	var saved *Certificate
	mockRepo.On("Create", ctx, mock.AnythingOfType("*certificates.Certificate")).
		Run(func(args mock.Arguments) { saved = args.Get(1).(*Certificate) }).
		Return(nil)

	cert, err := service.Save(ctx, userID, pfx, "s3cret", "cert", true)
	assert.NoError(t, err)

	mockRepo.On("GetByID", ctx, cert.ID, userID).Return(saved, nil)

	sc, err := service.ResolveSigner(ctx, cert.ID, userID, "")
	assert.NoError(t, err)
	assert.Equal(t, "Dr. Helena Souza", sc.Certificate.Subject.CommonName)
}

func TestValidateBoundedNeverThrows(t *testing.T) {
	service := newTestService(t, new(MockRepository))

	result := service.Validate([]byte{0x00, 0x01}, "pw")

	assert.False(t, result.IsValid)
	assert.NotEmpty(t, result.ErrorMessage)
}

func TestSweepExpired(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(t, mockRepo)
	ctx := context.Background()

	mockRepo.On("MarkExpired", ctx, mock.AnythingOfType("time.Time")).Return(int64(2), nil)

	service.SweepExpired(ctx)

	mockRepo.AssertExpectations(t)
}
