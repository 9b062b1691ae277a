package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mvasquez-dev/photoloom-backend/internal/db"
	"github.com/mvasquez-dev/photoloom-backend/internal/platform/localmedia"
	"github.com/mvasquez-dev/photoloom-backend/internal/platform/logger"
	"github.com/mvasquez-dev/photoloom-backend/internal/platform/qdrant"
	"github.com/mvasquez-dev/photoloom-backend/internal/repos"
	"github.com/mvasquez-dev/photoloom-backend/internal/types"
)

// fakeCompute hands out sequential job ids and records every submission.
// Per-task errors simulate a rejecting or unreachable backend.
type fakeCompute struct {
	mu          sync.Mutex
	next        int
	failFor     map[types.TaskType]error
	submissions []fakeSubmission
}

type fakeSubmission struct {
	TaskType  types.TaskType
	InputPath string
	JobID     string
}

func (f *fakeCompute) Submit(ctx context.Context, taskType types.TaskType, inputPath string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[taskType]; err != nil {
		return "", err
	}
	f.next++
	jobID := fmt.Sprintf("job-%d", f.next)
	f.submissions = append(f.submissions, fakeSubmission{TaskType: taskType, InputPath: inputPath, JobID: jobID})
	return jobID, nil
}

func (f *fakeCompute) jobFor(t *testing.T, taskType types.TaskType) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.submissions {
		if s.TaskType == taskType {
			return s.JobID
		}
	}
	t.Fatalf("no submission recorded for task %q", taskType)
	return ""
}

func (f *fakeCompute) jobsFor(taskType types.TaskType) []fakeSubmission {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []fakeSubmission
	for _, s := range f.submissions {
		if s.TaskType == taskType {
			out = append(out, s)
		}
	}
	return out
}

// fakeVectorStore returns canned search results and records call order so
// tests can assert the search-before-index invariant.
type fakeVectorStore struct {
	mu       sync.Mutex
	vectors  map[string][]float32
	results  []qdrant.Match
	searches []fakeSearch
}

type fakeSearch struct {
	TopK      int
	Threshold float64
	Exclude   []string
	// Indexed is how many vectors the store held when the search ran.
	Indexed int
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{vectors: map[string][]float32{}}
}

func (f *fakeVectorStore) Upsert(ctx context.Context, vectors []qdrant.Vector) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range vectors {
		f.vectors[v.ID] = v.Values
	}
	return nil
}

func (f *fakeVectorStore) Search(ctx context.Context, query []float32, topK int, scoreThreshold float64, excludeIDs []string) ([]qdrant.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, fakeSearch{
		TopK:      topK,
		Threshold: scoreThreshold,
		Exclude:   append([]string(nil), excludeIDs...),
		Indexed:   len(f.vectors),
	})
	excluded := make(map[string]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = true
	}
	var out []qdrant.Match
	for _, m := range f.results {
		if excluded[m.ID] || m.Score < scoreThreshold {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeVectorStore) has(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.vectors[id]
	return ok
}

type testEnv struct {
	gdb     *gorm.DB
	compute *fakeCompute

	faceStore   *fakeVectorStore
	clipStore   *fakeVectorStore
	siglipStore *fakeVectorStore

	entities repos.EntityRepo
	versions repos.EntityVersionRepo
	cursor   repos.SyncCursorRepo
	intel    repos.IntelligenceRepo
	jobs     repos.JobRecordRepo
	faces    repos.FaceRepo
	persons  repos.PersonRepo
	matches  repos.FaceMatchRepo

	submission SubmissionService
	matcher    FaceMatcher
	router     CallbackRouter
	reconciler Reconciler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.NewWithDB(gdb, logger.NewNop()).AutoMigrateAll(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	nop := logger.NewNop()
	policy := repos.RetryPolicy{MaxAttempts: 1}
	env := &testEnv{
		gdb:         gdb,
		compute:     &fakeCompute{failFor: map[types.TaskType]error{}},
		faceStore:   newFakeVectorStore(),
		clipStore:   newFakeVectorStore(),
		siglipStore: newFakeVectorStore(),
		entities:    repos.NewEntityRepo(gdb, nop, policy),
		versions:    repos.NewEntityVersionRepo(gdb, nop, policy),
		cursor:      repos.NewSyncCursorRepo(gdb, nop, policy),
		intel:       repos.NewIntelligenceRepo(gdb, nop, policy),
		jobs:        repos.NewJobRecordRepo(gdb, nop, policy),
		faces:       repos.NewFaceRepo(gdb, nop, policy),
		persons:     repos.NewPersonRepo(gdb, nop, policy),
		matches:     repos.NewFaceMatchRepo(gdb, nop, policy),
	}

	resolver, err := localmedia.NewResolver(t.TempDir())
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	stores := VectorStores{Faces: env.faceStore, Clip: env.clipStore, Siglip: env.siglipStore}
	env.submission = NewSubmissionService(nop, env.compute, resolver, env.entities, env.intel, env.jobs)
	env.matcher = NewFaceMatcher(nop, MatcherConfig{TopK: 5, ScoreThreshold: 0.6}, env.faceStore, env.faces, env.persons, env.matches)
	env.router = NewCallbackRouter(nop, env.submission, env.matcher, stores, env.intel, env.jobs, env.faces)
	env.reconciler = NewReconciler(nop, ReconcilerConfig{Parallelism: 2}, env.cursor, env.versions, env.submission)
	return env
}

func (e *testEnv) seedEntity(t *testing.T, id, txID int64) {
	t.Helper()
	ent := types.Entity{ID: id, FilePath: fmt.Sprintf("photos/%d.jpg", id), TxID: txID}
	if err := e.gdb.Create(&ent).Error; err != nil {
		t.Fatalf("seed entity %d: %v", id, err)
	}
}

func (e *testEnv) appendVersion(t *testing.T, entityID, txID int64, deleted bool) {
	t.Helper()
	rec := types.EntityVersionRecord{EntityID: entityID, TxID: txID, Deleted: deleted}
	if _, err := e.versions.Append(context.Background(), nil, &rec); err != nil {
		t.Fatalf("append version tx %d: %v", txID, err)
	}
}

func (e *testEnv) intelFor(t *testing.T, entityID int64) *types.IntelligenceRecord {
	t.Helper()
	rec, err := e.intel.GetByEntityID(context.Background(), nil, entityID)
	if err != nil {
		t.Fatalf("intelligence for %d: %v", entityID, err)
	}
	return rec
}
