// Package backup exports namespaced objects to tar.gz archives and restores
// them, optionally mirroring archives to S3-compatible storage.
package backup

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"sigs.k8s.io/yaml"

	"kagent/internal/collect"
	apperrors "kagent/internal/errors"
	"kagent/internal/metrics"
	"kagent/internal/model"
	"kagent/internal/store"
)

const (
	archiveExt     = ".tar.gz"
	archiveTimeFmt = "20060102_150405"
)

// ErrBackupNotFound is the cause of every lookup of an unknown backup.
var ErrBackupNotFound = errors.New("backup not found")

// validID reports whether id has the canonical uuid form every job id has.
// Anything else never names an archive.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil && len(id) == 36
}

// safeName maps a job name onto the characters allowed in archive file names.
func safeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}

func notFound(id string) *apperrors.Error {
	e := apperrors.NotFoundError("backup not found").WithContext("backup_id", id)
	e.Cause = ErrBackupNotFound
	return e
}

type Options struct {
	Dir        string
	MaxBackups int
	// Remote is optional. Jobs asking for the s3 location fall back to local
	// only when it is nil.
	Remote Remote
	Store  *store.Store
	// Mock completes jobs without touching a cluster.
	Mock bool
	Seed uint64
}

type Manager struct {
	dyn    dynamic.Interface
	core   kubernetes.Interface
	opts   Options
	clock  clockwork.Clock
	logger *zap.Logger

	mu       sync.Mutex
	backups  map[string]model.BackupJob
	restores map[string]model.RestoreJob
	rng      *rand.Rand

	cron     *cron.Cron
	schedule model.Schedule
	entry    cron.EntryID
}

func NewManager(dyn dynamic.Interface, core kubernetes.Interface, opts Options, clock clockwork.Clock, logger *zap.Logger) (*Manager, error) {
	if opts.MaxBackups < 1 {
		opts.MaxBackups = 10
	}
	if !opts.Mock {
		if err := os.MkdirAll(opts.Dir, 0o750); err != nil {
			return nil, fmt.Errorf("create backup dir: %w", err)
		}
	}
	m := &Manager{
		dyn:      dyn,
		core:     core,
		opts:     opts,
		clock:    clock,
		logger:   logger.Named("backup"),
		backups:  map[string]model.BackupJob{},
		restores: map[string]model.RestoreJob{},
		rng:      rand.New(rand.NewPCG(opts.Seed, opts.Seed+1)),
		cron:     cron.New(),
	}
	if opts.Store != nil {
		saved, err := store.Load[model.BackupJob](opts.Store, store.BucketBackups)
		if err != nil {
			return nil, fmt.Errorf("load backup jobs: %w", err)
		}
		for _, j := range saved {
			m.backups[j.ID] = j
		}
		restored, err := store.Load[model.RestoreJob](opts.Store, store.BucketRestores)
		if err != nil {
			return nil, fmt.Errorf("load restore jobs: %w", err)
		}
		for _, j := range restored {
			m.restores[j.ID] = j
		}
	}
	m.cron.Start()
	return m, nil
}

// Close stops the schedule.
func (m *Manager) Close() {
	<-m.cron.Stop().Done()
}

func (m *Manager) saveBackup(j model.BackupJob) {
	m.mu.Lock()
	m.backups[j.ID] = j
	m.mu.Unlock()
	if m.opts.Store != nil {
		if err := m.opts.Store.Put(store.BucketBackups, j.ID, j); err != nil {
			m.logger.Error("save backup job", zap.String("id", j.ID), zap.Error(err))
		}
	}
}

func (m *Manager) saveRestore(j model.RestoreJob) {
	m.mu.Lock()
	m.restores[j.ID] = j
	m.mu.Unlock()
	if m.opts.Store != nil {
		if err := m.opts.Store.Put(store.BucketRestores, j.ID, j); err != nil {
			m.logger.Error("save restore job", zap.String("id", j.ID), zap.Error(err))
		}
	}
}

// Create runs a backup job to completion. Only invalid input is returned as
// an error; a failed run is reported through the job status.
func (m *Manager) Create(ctx context.Context, job model.BackupJob) (model.BackupJob, error) {
	if strings.TrimSpace(job.Name) == "" {
		return job, apperrors.ValidationError("backup name is required")
	}
	switch job.BackupLocation {
	case "":
		job.BackupLocation = model.LocationLocal
	case model.LocationLocal, model.LocationS3:
	default:
		return job, apperrors.ValidationError("backup_location must be local or s3").
			WithContext("backup_location", job.BackupLocation)
	}
	switch {
	case job.ID == "":
		job.ID = uuid.NewString()
	case !validID(job.ID):
		return job, apperrors.ValidationError("backup id must be a uuid").WithContext("id", job.ID)
	default:
		if _, exists := m.Get(job.ID); exists {
			return job, apperrors.ConflictError("backup id already exists").WithContext("id", job.ID)
		}
	}
	if len(job.Namespaces) == 0 {
		job.Namespaces = []string{model.All}
	}
	if len(job.ResourceTypes) == 0 {
		job.ResourceTypes = []string{model.All}
	}
	job.Timestamp = m.clock.Now()
	job.Status = model.JobRunning
	job.ResourcesBackedUp = map[string]int{}
	m.saveBackup(job)

	log := m.logger.With(zap.String("id", job.ID), zap.String("name", job.Name))
	log.Info("starting backup job")

	var err error
	if m.opts.Mock {
		m.mockBackup(&job)
	} else {
		err = m.runBackup(ctx, &job, log)
	}
	if err != nil {
		job.Status = model.JobFailed
		job.ErrorMessage = err.Error()
		log.Error("backup failed", zap.Error(err))
	} else {
		job.Status = model.JobCompleted
		log.Info("backup completed",
			zap.String("archive", job.Archive),
			zap.Int64("size", job.FileSize),
			zap.Any("resources", job.ResourcesBackedUp),
		)
	}
	metrics.BackupsTotal.WithLabelValues(string(job.Status)).Inc()
	m.saveBackup(job)
	return job, nil
}

func (m *Manager) namespaces(ctx context.Context, requested []string) ([]string, error) {
	if !wantsAll(requested) {
		return requested, nil
	}
	list, err := m.core.CoreV1().Namespaces().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list namespaces: %w", err)
	}
	var out []string
	for _, ns := range list.Items {
		if !collect.IsSystemNamespace(ns.Name) {
			out = append(out, ns.Name)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *Manager) runBackup(ctx context.Context, job *model.BackupJob, log *zap.Logger) error {
	namespaces, err := m.namespaces(ctx, job.Namespaces)
	if err != nil {
		return err
	}
	types := expandTypes(job.ResourceTypes)

	a := archive{Entries: map[string][]byte{}}
	for _, ns := range namespaces {
		for _, t := range types {
			list, err := m.dyn.Resource(Resources[t]).Namespace(ns).List(ctx, metav1.ListOptions{})
			if err != nil {
				log.Warn("list failed, skipping type",
					zap.String("namespace", ns), zap.String("type", t), zap.Error(err))
				continue
			}
			for i := range list.Items {
				obj := &list.Items[i]
				if !selected(obj.GetLabels(), job.IncludeLabels, job.ExcludeLabels) || !clean(obj) {
					continue
				}
				data, err := yaml.Marshal(obj.Object)
				if err != nil {
					return fmt.Errorf("encode %s/%s/%s: %w", ns, t, obj.GetName(), err)
				}
				a.Entries[entryPath(ns, t, obj.GetName())] = data
				job.ResourcesBackedUp[t]++
			}
		}
	}

	a.Meta = model.BackupMetadata{
		ID:            job.ID,
		Name:          job.Name,
		Timestamp:     job.Timestamp,
		Namespaces:    job.Namespaces,
		ResourceTypes: job.ResourceTypes,
		IncludeLabels: job.IncludeLabels,
		ExcludeLabels: job.ExcludeLabels,
		Resources:     job.ResourcesBackedUp,
	}
	name := fmt.Sprintf("%s_%s_%s%s", job.ID, safeName(job.Name), job.Timestamp.Format(archiveTimeFmt), archiveExt)
	file := filepath.Join(m.opts.Dir, name)
	if filepath.Dir(file) != filepath.Clean(m.opts.Dir) {
		return fmt.Errorf("archive name %q leaves the backup dir", name)
	}
	size, err := writeArchive(file, a)
	if err != nil {
		os.Remove(file)
		return err
	}
	// Retention orders by modification time, so pin it to the job clock.
	if err := os.Chtimes(file, job.Timestamp, job.Timestamp); err != nil {
		log.Warn("set archive time", zap.Error(err))
	}
	job.Archive = name
	job.FileSize = size

	m.enforceRetention(log)

	if job.BackupLocation == model.LocationS3 {
		if m.opts.Remote == nil {
			log.Warn("s3 requested but object storage is not configured, keeping local archive only")
			return nil
		}
		key := remoteKey(name)
		if err := m.opts.Remote.Upload(ctx, key, file); err != nil {
			return err
		}
		job.RemoteKey = key
	}
	return nil
}

// enforceRetention keeps the newest MaxBackups archives in the backup dir.
func (m *Manager) enforceRetention(log *zap.Logger) {
	entries, err := os.ReadDir(m.opts.Dir)
	if err != nil {
		log.Warn("read backup dir", zap.Error(err))
		return
	}
	type archiveFile struct {
		name string
		mod  int64
	}
	var files []archiveFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), archiveExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, archiveFile{e.Name(), info.ModTime().UnixNano()})
	}
	if len(files) <= m.opts.MaxBackups {
		return
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i].mod != files[j].mod {
			return files[i].mod < files[j].mod
		}
		return files[i].name < files[j].name
	})
	for _, f := range files[:len(files)-m.opts.MaxBackups] {
		if err := os.Remove(filepath.Join(m.opts.Dir, f.name)); err != nil {
			log.Error("delete old backup", zap.String("archive", f.name), zap.Error(err))
			continue
		}
		log.Info("deleted old backup", zap.String("archive", f.name))
		m.forgetArchive(f.name, log)
	}
}

// forgetArchive drops the records of jobs whose only copy was the removed
// archive. Jobs mirrored to object storage stay restorable and are kept.
func (m *Manager) forgetArchive(name string, log *zap.Logger) {
	var gone []string
	m.mu.Lock()
	for id, j := range m.backups {
		if j.Archive == name && j.RemoteKey == "" {
			delete(m.backups, id)
			gone = append(gone, id)
		}
	}
	m.mu.Unlock()
	if m.opts.Store == nil {
		return
	}
	for _, id := range gone {
		if err := m.opts.Store.Delete(store.BucketBackups, id); err != nil && !errors.Is(err, store.ErrNotFound) {
			log.Warn("delete expired backup record", zap.String("id", id), zap.Error(err))
		}
	}
}

var mockTypes = []string{"deployments", "services", "pods", "configmaps", "secrets"}

func (m *Manager) mockBackup(job *model.BackupJob) {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := job.ResourceTypes
	if wantsAll(types) {
		types = mockTypes
	}
	for _, t := range types {
		job.ResourcesBackedUp[t] = m.rng.IntN(15) + 1
	}
	job.FileSize = int64(m.rng.IntN(100)+1) * 1024 * 1024
}

// archivePath finds the local archive of a backup: the recorded archive
// when the job is known, otherwise the newest file carrying the id prefix.
func (m *Manager) archivePath(id string) (string, bool) {
	if !validID(id) {
		return "", false
	}
	if j, ok := m.Get(id); ok && j.Archive != "" {
		file := filepath.Join(m.opts.Dir, filepath.Base(j.Archive))
		if _, err := os.Stat(file); err == nil {
			return file, true
		}
	}
	entries, err := os.ReadDir(m.opts.Dir)
	if err != nil {
		return "", false
	}
	var matches []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), id+"_") && strings.HasSuffix(e.Name(), archiveExt) {
			matches = append(matches, e.Name())
		}
	}
	if len(matches) == 0 {
		return "", false
	}
	slices.Sort(matches)
	return filepath.Join(m.opts.Dir, matches[len(matches)-1]), true
}

// List returns backup jobs, newest first.
func (m *Manager) List() []model.BackupJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.BackupJob, 0, len(m.backups))
	for _, j := range m.backups {
		out = append(out, j)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

// Restores returns restore jobs, newest first.
func (m *Manager) Restores() []model.RestoreJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.RestoreJob, 0, len(m.restores))
	for _, j := range m.restores {
		out = append(out, j)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

func (m *Manager) Get(id string) (model.BackupJob, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.backups[id]
	return j, ok
}

// FileInfo describes the local archive of a backup.
func (m *Manager) FileInfo(id string) (model.FileInfo, bool) {
	file, ok := m.archivePath(id)
	if !ok {
		return model.FileInfo{}, false
	}
	st, err := os.Stat(file)
	if err != nil {
		return model.FileInfo{}, false
	}
	return model.FileInfo{
		Filename: filepath.Base(file),
		Path:     file,
		Size:     st.Size(),
		Created:  st.ModTime(),
	}, true
}

// Detail combines the job record with its archive.
func (m *Manager) Detail(id string) (model.BackupDetail, error) {
	j, ok := m.Get(id)
	if !ok {
		return model.BackupDetail{}, notFound(id)
	}
	d := model.BackupDetail{BackupJob: j}
	if fi, ok := m.FileInfo(id); ok {
		d.File = &fi
	}
	return d, nil
}

// Delete removes the archive, its remote copy and the job record.
func (m *Manager) Delete(ctx context.Context, id string) error {
	j, known := m.Get(id)
	file, hasFile := m.archivePath(id)
	if !known && !hasFile {
		return notFound(id)
	}
	var errs []error
	if hasFile {
		if err := os.Remove(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if j.RemoteKey != "" && m.opts.Remote != nil {
		if err := m.opts.Remote.Remove(ctx, j.RemoteKey); err != nil {
			errs = append(errs, err)
		}
	}
	if known {
		m.mu.Lock()
		delete(m.backups, id)
		m.mu.Unlock()
		if m.opts.Store != nil {
			if err := m.opts.Store.Delete(store.BucketBackups, id); err != nil && !errors.Is(err, store.ErrNotFound) {
				errs = append(errs, err)
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return apperrors.InternalError("delete backup", err).WithContext("backup_id", id)
	}
	m.logger.Info("backup deleted", zap.String("id", id))
	return nil
}
