package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/speechvault/speechvault/internal/blob"
	"github.com/speechvault/speechvault/internal/catalog"
	"github.com/speechvault/speechvault/internal/database"
	"github.com/speechvault/speechvault/internal/entitlement"
	"github.com/speechvault/speechvault/internal/pricing"
	"github.com/speechvault/speechvault/internal/seal"
	"github.com/speechvault/speechvault/internal/store"
)

// testPasswordHash is a bcrypt hash used wherever a test account needs one.
const testPasswordHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// memBlobClient keeps uploaded blobs in a map.
type memBlobClient struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memBlobClient) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.objects[*input.Key] = data
	m.mu.Unlock()
	return &s3.PutObjectOutput{}, nil
}

func (m *memBlobClient) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	data, ok := m.objects[*input.Key]
	m.mu.Unlock()
	if !ok {
		return nil, io.EOF
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

type contentTestEnv struct {
	datasets *DatasetHandler
	seals    *SealHandler
	accounts *store.AccountStore
	store    *store.DatasetStore
	catalog  *catalog.Service
	svc      *entitlement.Service
}

func setupContentEnv(t *testing.T) *contentTestEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	accounts := store.NewAccountStore(db)
	datasets := store.NewDatasetStore(db)
	subscriptions := store.NewSubscriptionStore(db)
	events := store.NewEventStore(db)
	cat := catalog.NewService(store.NewLanguageStore(db))

	svc := entitlement.NewService(db, datasets, subscriptions, accounts, events, cat, entitlement.Config{
		Pricing: pricing.Config{BaseRate: 1_000_000, DiscountPercent: 20},
	}, slog.Default())

	sealer, err := seal.NewSealer([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("new sealer: %v", err)
	}
	blobs := blob.NewStoreWithClient(&memBlobClient{objects: make(map[string][]byte)}, "test")

	return &contentTestEnv{
		datasets: NewDatasetHandler(svc, datasets, sealer, blobs, slog.Default()),
		seals:    NewSealHandler(svc, sealer, slog.Default()),
		accounts: accounts,
		store:    datasets,
		catalog:  cat,
		svc:      svc,
	}
}

func TestContentPipelineKeyDerivation(t *testing.T) {
	env := setupContentEnv(t)

	creator, err := env.accounts.Create("creator@example.com", testPasswordHash)
	if err != nil {
		t.Fatalf("create creator: %v", err)
	}
	if _, err := env.catalog.RegisterLanguage("aymara", "standard", "sample", creator.ID); err != nil {
		t.Fatalf("register language: %v", err)
	}
	ds, cap, err := env.svc.CreateDataset(creator.ID, "aymara", "standard", 30, "")
	if err != nil {
		t.Fatalf("create dataset: %v", err)
	}

	plaintext := []byte("raw audio corpus bytes")
	req := httptest.NewRequest("POST", "/api/datasets/1/content", bytes.NewReader(plaintext))
	req.SetPathValue("id", "1")
	req.Header.Set(capHeader, cap.Token)
	req = req.WithContext(WithAccountID(req.Context(), creator.ID))
	rec := httptest.NewRecorder()
	env.datasets.UploadContent(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d: %s", rec.Code, rec.Body.String())
	}

	var uploaded struct {
		ContentRef   string `json:"content_ref"`
		ContentKeyID string `json:"content_key_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &uploaded); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	// The content key lives under the dataset's policy namespace but is
	// never the bare namespace itself.
	if !strings.HasPrefix(uploaded.ContentKeyID, ds.PolicyID+"/") {
		t.Errorf("key id %q not under namespace %q", uploaded.ContentKeyID, ds.PolicyID)
	}

	got, err := env.store.GetByID(ds.ID)
	if err != nil {
		t.Fatalf("reload dataset: %v", err)
	}
	if got.ContentKeyID == nil || *got.ContentKeyID != uploaded.ContentKeyID {
		t.Fatal("stored content_key_id must match the upload response")
	}

	// A paid-up subscriber downloads the original bytes back.
	buyer, err := env.accounts.Create("buyer@example.com", testPasswordHash)
	if err != nil {
		t.Fatalf("create buyer: %v", err)
	}
	if err := env.accounts.Credit(buyer.ID, 10_000_000); err != nil {
		t.Fatalf("credit buyer: %v", err)
	}
	sub, err := env.svc.Subscribe(buyer.ID, ds.ID, 7, 7_000_000, time.Now().UTC())
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	req = httptest.NewRequest("GET", "/api/datasets/1/content?subscription_id=1", nil)
	req.SetPathValue("id", "1")
	req = req.WithContext(WithAccountID(req.Context(), buyer.ID))
	rec = httptest.NewRecorder()
	env.datasets.DownloadContent(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("download status = %d: %s", rec.Code, rec.Body.String())
	}
	if !bytes.Equal(rec.Body.Bytes(), plaintext) {
		t.Error("download must return the original plaintext")
	}

	// Key release approves the stored key id for the subscriber only.
	approve := func(accountID int64, policyID string) int {
		body, _ := json.Marshal(map[string]any{
			"policy_id":       policyID,
			"dataset_id":      ds.ID,
			"subscription_id": sub.ID,
		})
		r := httptest.NewRequest("POST", "/api/seal/approve", bytes.NewReader(body))
		r = r.WithContext(WithAccountID(r.Context(), accountID))
		w := httptest.NewRecorder()
		env.seals.Approve(w, r)
		return w.Code
	}
	if code := approve(buyer.ID, uploaded.ContentKeyID); code != http.StatusOK {
		t.Errorf("approve for subscriber = %d, want %d", code, http.StatusOK)
	}
	if code := approve(creator.ID, uploaded.ContentKeyID); code != http.StatusForbidden {
		t.Errorf("approve for non-subscriber = %d, want %d", code, http.StatusForbidden)
	}
	if code := approve(buyer.ID, "other-namespace/key"); code != http.StatusForbidden {
		t.Errorf("approve for foreign namespace = %d, want %d", code, http.StatusForbidden)
	}
}
