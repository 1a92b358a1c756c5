package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/srm-ap/portal-api/internal/apperror"
	"github.com/srm-ap/portal-api/internal/models"
)

var pdfStub = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

type stubFileStorage struct {
	uploads   map[string][]byte
	uploadErr error
	fetchErr  error
	fetchCode int
	fetchBody string
	lastRange string
}

func (s *stubFileStorage) Upload(_ context.Context, name string, reader io.Reader) (string, error) {
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	if s.uploads == nil {
		s.uploads = map[string][]byte{}
	}
	s.uploads[name] = data
	return "https://cdn.test/" + name, nil
}

func (s *stubFileStorage) Fetch(_ context.Context, _ string, rangeHeader string) (*http.Response, error) {
	s.lastRange = rangeHeader
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	code := s.fetchCode
	if code == 0 {
		code = http.StatusOK
	}
	return &http.Response{
		StatusCode: code,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader(s.fetchBody)),
	}, nil
}

type memoryFileRepo struct {
	files  map[uint]models.FileObject
	nextID uint
}

func newMemoryFileRepo() *memoryFileRepo {
	return &memoryFileRepo{files: map[uint]models.FileObject{}, nextID: 1}
}

func (r *memoryFileRepo) Create(_ context.Context, record *models.FileObject) error {
	record.ID = r.nextID
	r.nextID++
	r.files[record.ID] = *record
	return nil
}

func (r *memoryFileRepo) GetByID(_ context.Context, id uint) (models.FileObject, error) {
	record, ok := r.files[id]
	if !ok {
		return models.FileObject{}, gorm.ErrRecordNotFound
	}
	return record, nil
}

func (r *memoryFileRepo) ListByOwner(_ context.Context, ownerID uint) ([]models.FileObject, error) {
	matches := make([]models.FileObject, 0, len(r.files))
	for _, record := range r.files {
		if record.OwnerID == ownerID {
			matches = append(matches, record)
		}
	}
	return matches, nil
}

func (r *memoryFileRepo) ListByGroup(_ context.Context, groupID uint) ([]models.FileObject, error) {
	matches := make([]models.FileObject, 0, len(r.files))
	for _, record := range r.files {
		if record.GroupID != nil && *record.GroupID == groupID {
			matches = append(matches, record)
		}
	}
	return matches, nil
}

func (r *memoryFileRepo) Delete(_ context.Context, id uint) error {
	if _, ok := r.files[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.files, id)
	return nil
}

type fileFixture struct {
	svc     FileService
	storage *stubFileStorage
	files   *memoryFileRepo
	groups  *memoryGroupRepo
}

func newFileFixture(maxSizeMB int) fileFixture {
	storage := &stubFileStorage{}
	files := newMemoryFileRepo()
	groups := newMemoryGroupRepo()

	return fileFixture{
		svc:     NewFileService(storage, files, groups, maxSizeMB, testLogger()),
		storage: storage,
		files:   files,
		groups:  groups,
	}
}

// formFile builds a real multipart header so FileHeader.Open works in tests.
func formFile(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	form, err := multipart.NewReader(body, writer.Boundary()).ReadForm(32 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })

	headers := form.File["file"]
	require.Len(t, headers, 1)
	return headers[0]
}

func TestFileUploadStoresPDFWithChecksum(t *testing.T) {
	fx := newFileFixture(10)
	caller := AuthorizationContext{UserID: 30, Role: models.RoleStudent}

	uploaded, err := fx.svc.Upload(context.Background(), caller, formFile(t, "Final Report.PDF", pdfStub), "", "")
	require.NoError(t, err)
	require.Equal(t, "final-report.pdf", uploaded.FileName)
	require.Equal(t, models.FileKindAttachment, uploaded.Kind)
	require.Equal(t, "application/pdf", uploaded.MimeType)
	require.Equal(t, int64(len(pdfStub)), uploaded.SizeBytes)

	sum := sha256.Sum256(pdfStub)
	require.Equal(t, hex.EncodeToString(sum[:]), uploaded.Checksum)

	require.Equal(t, pdfStub, fx.storage.uploads["final-report.pdf"])
	stored := fx.files.files[uploaded.ID]
	require.Equal(t, uint(30), stored.OwnerID)
	require.Nil(t, stored.GroupID)
}

func TestFileUploadSniffsContentNotExtension(t *testing.T) {
	fx := newFileFixture(10)
	caller := AuthorizationContext{UserID: 30, Role: models.RoleStudent}

	// The extension claims PDF; the bytes say otherwise.
	_, err := fx.svc.Upload(context.Background(), caller, formFile(t, "report.pdf", []byte("plain text, not a pdf")), "", "")
	require.ErrorIs(t, err, apperror.FileNotAllowed)

	png := append([]byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}, bytes.Repeat([]byte{0}, 64)...)
	_, err = fx.svc.Upload(context.Background(), caller, formFile(t, "image.pdf", png), "", "")
	require.ErrorIs(t, err, apperror.FileNotAllowed)
	require.Empty(t, fx.files.files)
}

func TestFileUploadEnforcesSizeCap(t *testing.T) {
	fx := newFileFixture(1)
	caller := AuthorizationContext{UserID: 30, Role: models.RoleStudent}

	oversized := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte{'a'}, 1<<20)...)
	_, err := fx.svc.Upload(context.Background(), caller, formFile(t, "big.pdf", oversized), "", "")
	require.ErrorIs(t, err, apperror.FileTooLarge)
	require.Empty(t, fx.files.files)
}

func TestFileUploadReportAttachesToGroup(t *testing.T) {
	fx := newFileFixture(10)
	group := models.Group{Name: "Report Team", ProjectType: models.ProjectTypeIDP, LeaderID: 30, Status: models.GroupStatusActive}
	require.NoError(t, fx.groups.CreateWithLeader(context.Background(), &group))

	caller := AuthorizationContext{UserID: 30, Role: models.RoleStudent, Eligibility: models.ProjectTypeIDP}
	uploaded, err := fx.svc.Upload(context.Background(), caller, formFile(t, "report.pdf", pdfStub), models.FileKindReport, "IDP")
	require.NoError(t, err)
	require.NotNil(t, uploaded.GroupID)
	require.Equal(t, group.ID, *uploaded.GroupID)

	// A report upload needs a valid project type and a group to attach to.
	_, err = fx.svc.Upload(context.Background(), caller, formFile(t, "report.pdf", pdfStub), models.FileKindReport, "")
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	require.Equal(t, apperror.CodeValidation, appErr.Code)

	loner := AuthorizationContext{UserID: 31, Role: models.RoleStudent, Eligibility: models.ProjectTypeIDP}
	_, err = fx.svc.Upload(context.Background(), loner, formFile(t, "report.pdf", pdfStub), models.FileKindReport, "IDP")
	appErr, ok = apperror.As(err)
	require.True(t, ok)
	require.Equal(t, apperror.CodeBusinessRule, appErr.Code)
}

func TestFileUploadRejectsUnknownKind(t *testing.T) {
	fx := newFileFixture(10)
	caller := AuthorizationContext{UserID: 30, Role: models.RoleStudent}

	_, err := fx.svc.Upload(context.Background(), caller, formFile(t, "report.pdf", pdfStub), "banner", "")
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	require.Equal(t, apperror.CodeValidation, appErr.Code)
}

func TestFileUploadUpstreamFailure(t *testing.T) {
	fx := newFileFixture(10)
	fx.storage.uploadErr = errors.New("cloud is down")
	caller := AuthorizationContext{UserID: 30, Role: models.RoleStudent}

	_, err := fx.svc.Upload(context.Background(), caller, formFile(t, "report.pdf", pdfStub), "", "")
	require.ErrorIs(t, err, apperror.FileUpstream)
	require.Empty(t, fx.files.files)
}

func TestFileDownloadProxiesRange(t *testing.T) {
	fx := newFileFixture(10)
	fx.storage.fetchCode = http.StatusPartialContent
	fx.storage.fetchBody = "%PDF"

	record := models.FileObject{OwnerID: 30, FileName: "report.pdf", URL: "https://cdn.test/report.pdf"}
	require.NoError(t, fx.files.Create(context.Background(), &record))

	caller := AuthorizationContext{UserID: 30, Role: models.RoleStudent}
	got, response, err := fx.svc.Download(context.Background(), caller, record.ID, "bytes=0-3")
	require.NoError(t, err)
	defer response.Body.Close()

	require.Equal(t, "bytes=0-3", fx.storage.lastRange)
	require.Equal(t, "report.pdf", got.FileName)
	require.Equal(t, http.StatusPartialContent, response.StatusCode)

	payload, err := io.ReadAll(response.Body)
	require.NoError(t, err)
	require.Equal(t, "%PDF", string(payload))
}

func TestFileDownloadUpstreamRejection(t *testing.T) {
	fx := newFileFixture(10)
	fx.storage.fetchCode = http.StatusNotFound

	record := models.FileObject{OwnerID: 30, FileName: "report.pdf", URL: "https://cdn.test/report.pdf"}
	require.NoError(t, fx.files.Create(context.Background(), &record))

	caller := AuthorizationContext{UserID: 30, Role: models.RoleStudent}
	_, _, err := fx.svc.Download(context.Background(), caller, record.ID, "")
	require.ErrorIs(t, err, apperror.FileUpstream)

	fx.storage.fetchCode = 0
	fx.storage.fetchErr = errors.New("connection reset")
	_, _, err = fx.svc.Download(context.Background(), caller, record.ID, "")
	require.ErrorIs(t, err, apperror.FileUpstream)
}

func TestFileReadAccessControl(t *testing.T) {
	fx := newFileFixture(10)
	group := models.Group{Name: "Readers", ProjectType: models.ProjectTypeIDP, LeaderID: 30, Status: models.GroupStatusActive}
	require.NoError(t, fx.groups.CreateWithLeader(context.Background(), &group))
	require.NoError(t, fx.groups.AddMember(context.Background(), &models.GroupMember{GroupID: group.ID, StudentID: 31, Role: models.GroupRoleMember}))

	record := models.FileObject{OwnerID: 30, GroupID: &group.ID, FileName: "report.pdf"}
	require.NoError(t, fx.files.Create(context.Background(), &record))

	// Owner, group member, faculty and staff may read; strangers may not.
	_, err := fx.svc.Get(context.Background(), AuthorizationContext{UserID: 30, Role: models.RoleStudent}, record.ID)
	require.NoError(t, err)
	_, err = fx.svc.Get(context.Background(), AuthorizationContext{UserID: 31, Role: models.RoleStudent}, record.ID)
	require.NoError(t, err)
	_, err = fx.svc.Get(context.Background(), facultyContext(60), record.ID)
	require.NoError(t, err)
	_, err = fx.svc.Get(context.Background(), coordinatorContext(90), record.ID)
	require.NoError(t, err)
	_, err = fx.svc.Get(context.Background(), AuthorizationContext{UserID: 99, Role: models.RoleStudent}, record.ID)
	require.ErrorIs(t, err, apperror.Forbidden)

	_, err = fx.svc.Get(context.Background(), facultyContext(60), 404)
	require.ErrorIs(t, err, apperror.NotFound)
}

func TestFileListByGroupMembersOnly(t *testing.T) {
	fx := newFileFixture(10)
	group := models.Group{Name: "Listers", ProjectType: models.ProjectTypeIDP, LeaderID: 30, Status: models.GroupStatusActive}
	require.NoError(t, fx.groups.CreateWithLeader(context.Background(), &group))

	record := models.FileObject{OwnerID: 30, GroupID: &group.ID, FileName: "report.pdf"}
	require.NoError(t, fx.files.Create(context.Background(), &record))

	listed, err := fx.svc.ListByGroup(context.Background(), AuthorizationContext{UserID: 30, Role: models.RoleStudent}, group.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	_, err = fx.svc.ListByGroup(context.Background(), AuthorizationContext{UserID: 99, Role: models.RoleStudent}, group.ID)
	require.ErrorIs(t, err, apperror.Forbidden)

	_, err = fx.svc.ListByGroup(context.Background(), AuthorizationContext{UserID: 30, Role: models.RoleStudent}, 404)
	require.ErrorIs(t, err, apperror.NotFound)
}

func TestFileDeleteOwnerOrStaff(t *testing.T) {
	fx := newFileFixture(10)
	record := models.FileObject{OwnerID: 30, FileName: "report.pdf"}
	require.NoError(t, fx.files.Create(context.Background(), &record))

	err := fx.svc.Delete(context.Background(), AuthorizationContext{UserID: 31, Role: models.RoleStudent}, record.ID)
	require.ErrorIs(t, err, apperror.Forbidden)

	require.NoError(t, fx.svc.Delete(context.Background(), AuthorizationContext{UserID: 30, Role: models.RoleStudent}, record.ID))
	require.Empty(t, fx.files.files)

	err = fx.svc.Delete(context.Background(), AuthorizationContext{UserID: 30, Role: models.RoleStudent}, record.ID)
	require.ErrorIs(t, err, apperror.NotFound)

	another := models.FileObject{OwnerID: 31, FileName: "other.pdf"}
	require.NoError(t, fx.files.Create(context.Background(), &another))
	require.NoError(t, fx.svc.Delete(context.Background(), AuthorizationContext{UserID: 1, Role: models.RoleAdmin}, another.ID))
}
