package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/hitoshi/photorate/internal/model"
)

const testMaxUpload = 1 << 10

// newMultipartRequest はフィールド名fieldのファイルパートを1つ含むリクエストを生成する。
func newMultipartRequest(t *testing.T, field, fileName, contentType string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if err := mw.WriteField("caption", "ignored"); err != nil {
		t.Fatalf("failed to write field: %v", err)
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, fileName))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatalf("failed to create part: %v", err)
	}
	part.Write(content)
	if err := mw.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/photo/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return withUserID(req, testUserID)
}

func TestPhotoHandler_Upload_Success(t *testing.T) {
	svc := &mockPhotoService{
		uploadFn: func(ctx context.Context, userID model.ID, body io.Reader, contentType, originalName string) (*uploadResponse, error) {
			if userID != testUserID {
				t.Errorf("userID = %s, want %s", userID, testUserID)
			}
			if contentType != "image/png" || originalName != "beach.png" {
				t.Errorf("contentType/originalName = %q/%q", contentType, originalName)
			}
			data, _ := io.ReadAll(body)
			if string(data) != "png-bytes" {
				t.Errorf("body = %q", data)
			}
			return &uploadResponse{
				Message: "ok",
				PhotoID: testPhotoID.String(),
				Photo:   photoResponse{ID: testPhotoID.String(), FilePath: "/uploads/x.png"},
				Points:  9,
			}, nil
		},
	}
	h := NewPhotoHandler(svc, &mockLedgerService{}, testMaxUpload)

	w := httptest.NewRecorder()
	h.Upload(w, newMultipartRequest(t, "photo", "beach.png", "image/png", []byte("png-bytes")))

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body=%s", w.Code, http.StatusCreated, w.Body.String())
	}
	var resp uploadResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if resp.PhotoID != testPhotoID.String() || resp.Points != 9 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestPhotoHandler_Upload_MissingFile(t *testing.T) {
	svc := &mockPhotoService{
		uploadFn: func(ctx context.Context, userID model.ID, body io.Reader, contentType, originalName string) (*uploadResponse, error) {
			t.Fatal("service should not be called")
			return nil, nil
		},
	}
	h := NewPhotoHandler(svc, &mockLedgerService{}, testMaxUpload)

	t.Run("別フィールド名", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Upload(w, newMultipartRequest(t, "image", "beach.png", "image/png", []byte("x")))
		assertAPIError(t, w, http.StatusBadRequest, model.ErrCodeFileMissing)
	})

	t.Run("multipartでない", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/photo/upload", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		h.Upload(w, withUserID(req, testUserID))
		assertAPIError(t, w, http.StatusBadRequest, model.ErrCodeFileMissing)
	})
}

func TestPhotoHandler_Upload_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"形式不正", model.NewInvalidFileTypeError("image/gif"), http.StatusBadRequest, model.ErrCodeInvalidFileType},
		{"サイズ超過", model.NewFileTooLargeError(testMaxUpload), http.StatusBadRequest, model.ErrCodeFileTooLarge},
		{"ポイント不足", model.NewNotEnoughPointsError(), http.StatusForbidden, model.ErrCodeNotEnoughPoints},
		{"内部エラー", errors.New("disk full"), http.StatusInternalServerError, model.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockPhotoService{
				uploadFn: func(ctx context.Context, userID model.ID, body io.Reader, contentType, originalName string) (*uploadResponse, error) {
					return nil, tt.err
				},
			}
			h := NewPhotoHandler(svc, &mockLedgerService{}, testMaxUpload)

			w := httptest.NewRecorder()
			h.Upload(w, newMultipartRequest(t, "photo", "a.png", "image/png", []byte("x")))
			assertAPIError(t, w, tt.wantStatus, tt.wantCode)
		})
	}
}

func TestPhotoHandler_Upload_RequestBodyTooLarge(t *testing.T) {
	svc := &mockPhotoService{
		uploadFn: func(ctx context.Context, userID model.ID, body io.Reader, contentType, originalName string) (*uploadResponse, error) {
			if _, err := io.Copy(io.Discard, body); err != nil {
				return nil, fmt.Errorf("failed to write file: %w", err)
			}
			return &uploadResponse{}, nil
		},
	}
	h := NewPhotoHandler(svc, &mockLedgerService{}, testMaxUpload)

	big := bytes.Repeat([]byte("a"), testMaxUpload+multipartOverhead+1)
	w := httptest.NewRecorder()
	h.Upload(w, newMultipartRequest(t, "photo", "big.png", "image/png", big))

	assertAPIError(t, w, http.StatusBadRequest, model.ErrCodeFileTooLarge)
}

func TestPhotoHandler_Upload_Unauthenticated(t *testing.T) {
	h := NewPhotoHandler(&mockPhotoService{}, &mockLedgerService{}, testMaxUpload)

	req := httptest.NewRequest(http.MethodPost, "/api/photo/upload", nil)
	w := httptest.NewRecorder()
	h.Upload(w, req)

	assertAPIError(t, w, http.StatusUnauthorized, model.ErrCodeUnauthorized)
}

func TestPhotoHandler_MyPhotos(t *testing.T) {
	svc := &mockPhotoService{
		myPhotosFn: func(ctx context.Context, userID model.ID) (*myPhotosResponse, error) {
			return &myPhotosResponse{
				Photos: []photoResponse{{ID: testPhotoID.String(), FilePath: "/uploads/x.jpg", IsEvaluated: true, TotalRatings: 3}},
				Points: 4,
			}, nil
		},
	}
	h := NewPhotoHandler(svc, &mockLedgerService{}, testMaxUpload)

	req := withUserID(httptest.NewRequest(http.MethodGet, "/api/photo/my-photos", nil), testUserID)
	w := httptest.NewRecorder()
	h.MyPhotos(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp map[string]any
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	photos, ok := resp["photos"].([]any)
	if !ok || len(photos) != 1 {
		t.Fatalf("photos = %v", resp["photos"])
	}
	first := photos[0].(map[string]any)
	if first["isEvaluated"] != true || first["totalRatings"] != float64(3) {
		t.Errorf("photo = %v", first)
	}
	if resp["points"] != float64(4) {
		t.Errorf("points = %v, want 4", resp["points"])
	}
}

func TestPhotoHandler_AddToPool(t *testing.T) {
	svc := &mockPhotoService{
		addToPoolFn: func(ctx context.Context, userID, photoID model.ID) (*poolAddResponse, error) {
			if photoID != testPhotoID {
				t.Errorf("photoID = %s, want %s", photoID, testPhotoID)
			}
			return &poolAddResponse{Message: "added", Points: 0}, nil
		},
	}
	h := NewPhotoHandler(svc, &mockLedgerService{}, testMaxUpload)

	body := fmt.Sprintf(`{"photoId":%q}`, testPhotoID)
	req := withUserID(httptest.NewRequest(http.MethodPost, "/api/photo/evaluate/add", strings.NewReader(body)), testUserID)
	w := httptest.NewRecorder()
	h.AddToPool(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp map[string]any
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if resp["message"] != "added" || resp["points"] != float64(0) {
		t.Errorf("resp = %v", resp)
	}
}

func TestPhotoHandler_AddToPool_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"不正なID", `{"photoId":"not-a-uuid"}`, nil, http.StatusBadRequest, model.ErrCodeInvalidID},
		{"ポイント不足", fmt.Sprintf(`{"photoId":%q}`, testPhotoID), model.NewNotEnoughPointsError(), http.StatusForbidden, model.ErrCodeNotEnoughPoints},
		{"他人の写真", fmt.Sprintf(`{"photoId":%q}`, testPhotoID), model.NewPhotoNotFoundError(testPhotoID), http.StatusNotFound, model.ErrCodePhotoNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockPhotoService{
				addToPoolFn: func(ctx context.Context, userID, photoID model.ID) (*poolAddResponse, error) {
					if tt.err == nil {
						t.Fatal("service should not be called")
					}
					return nil, tt.err
				},
			}
			h := NewPhotoHandler(svc, &mockLedgerService{}, testMaxUpload)

			req := withUserID(httptest.NewRequest(http.MethodPost, "/api/photo/evaluate/add", strings.NewReader(tt.body)), testUserID)
			w := httptest.NewRecorder()
			h.AddToPool(w, req)

			assertAPIError(t, w, tt.wantStatus, tt.wantCode)
		})
	}
}

func TestPhotoHandler_RemoveFromPool(t *testing.T) {
	called := false
	svc := &mockPhotoService{
		removeFromPoolFn: func(ctx context.Context, userID, photoID model.ID) error {
			called = true
			return nil
		},
	}
	h := NewPhotoHandler(svc, &mockLedgerService{}, testMaxUpload)

	body := fmt.Sprintf(`{"photoId":%q}`, testPhotoID)
	req := withUserID(httptest.NewRequest(http.MethodPost, "/api/photo/evaluate/remove", strings.NewReader(body)), testUserID)
	w := httptest.NewRecorder()
	h.RemoveFromPool(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !called {
		t.Error("service should be called")
	}
}

func TestPhotoHandler_Points(t *testing.T) {
	var gotLimit int
	ledger := &mockLedgerService{
		pointsFn: func(ctx context.Context, userID model.ID, limit int) (*pointsResponse, error) {
			gotLimit = limit
			return &pointsResponse{
				Points:  7,
				History: []transactionResponse{{Delta: -1, Kind: "upload", PhotoID: testPhotoID.String()}},
			}, nil
		},
	}
	h := NewPhotoHandler(&mockPhotoService{}, ledger, testMaxUpload)

	req := withUserID(httptest.NewRequest(http.MethodGet, "/api/photo/points?limit=5", nil), testUserID)
	w := httptest.NewRecorder()
	h.Points(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotLimit != 5 {
		t.Errorf("limit = %d, want 5", gotLimit)
	}
	var resp pointsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if resp.Points != 7 || len(resp.History) != 1 || resp.History[0].Kind != "upload" {
		t.Errorf("resp = %+v", resp)
	}

	req = withUserID(httptest.NewRequest(http.MethodGet, "/api/photo/points?limit=abc", nil), testUserID)
	w = httptest.NewRecorder()
	h.Points(w, req)
	assertAPIError(t, w, http.StatusBadRequest, model.ErrCodeInvalidRequest)
}
