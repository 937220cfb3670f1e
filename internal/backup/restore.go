package backup

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/yaml"

	apperrors "kagent/internal/errors"
	"kagent/internal/metrics"
	"kagent/internal/model"
)

// Restore applies a backup archive back to the cluster. Only invalid input
// is returned as an error; a failed run is reported through the job status.
func (m *Manager) Restore(ctx context.Context, job model.RestoreJob) (model.RestoreJob, error) {
	if job.BackupID == "" {
		return job, apperrors.ValidationError("backup_id is required")
	}
	switch job.RestoreStrategy {
	case "":
		job.RestoreStrategy = model.StrategyCreateOrReplace
	case model.StrategyCreateOrReplace, model.StrategyCreateOnly, model.StrategyReplaceOnly:
	default:
		return job, apperrors.ValidationError("unknown restore strategy").
			WithContext("restore_strategy", job.RestoreStrategy)
	}
	if _, known := m.Get(job.BackupID); !known {
		if _, ok := m.archivePath(job.BackupID); !ok {
			return job, notFound(job.BackupID)
		}
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Name == "" {
		job.Name = "restore-" + job.BackupID
	}
	job.Timestamp = m.clock.Now()
	job.Status = model.JobRunning
	job.ResourcesRestored = map[string]int{}
	m.saveRestore(job)

	log := m.logger.With(zap.String("id", job.ID), zap.String("backup_id", job.BackupID))
	log.Info("starting restore job", zap.String("strategy", job.RestoreStrategy))

	var err error
	if m.opts.Mock {
		err = m.mockRestore(&job)
	} else {
		err = m.runRestore(ctx, &job, log)
	}
	if err != nil {
		job.Status = model.JobFailed
		job.ErrorMessage = err.Error()
		log.Error("restore failed", zap.Error(err))
	} else {
		job.Status = model.JobCompleted
		log.Info("restore completed", zap.Any("resources", job.ResourcesRestored))
	}
	metrics.RestoresTotal.WithLabelValues(string(job.Status)).Inc()
	m.saveRestore(job)
	return job, nil
}

// fetchArchive returns the local archive path, downloading it from object
// storage when only the remote copy remains.
func (m *Manager) fetchArchive(ctx context.Context, id string) (string, error) {
	if file, ok := m.archivePath(id); ok {
		return file, nil
	}
	j, known := m.Get(id)
	if !known {
		return "", fmt.Errorf("%w: %s", ErrBackupNotFound, id)
	}
	if j.RemoteKey == "" || m.opts.Remote == nil {
		return "", fmt.Errorf("archive for backup %s is missing", id)
	}
	file := filepath.Join(m.opts.Dir, filepath.Base(j.Archive))
	if err := m.opts.Remote.Download(ctx, j.RemoteKey, file); err != nil {
		return "", err
	}
	return file, nil
}

func resolve(requested, recorded, fromArchive []string) []string {
	if !wantsAll(requested) {
		return requested
	}
	if wantsAll(recorded) {
		return fromArchive
	}
	return recorded
}

func (m *Manager) runRestore(ctx context.Context, job *model.RestoreJob, log *zap.Logger) error {
	file, err := m.fetchArchive(ctx, job.BackupID)
	if err != nil {
		return err
	}
	a, err := readArchive(file)
	if err != nil {
		return err
	}

	namespaces := resolve(job.Namespaces, a.Meta.Namespaces, a.dirs(0))
	types := resolve(job.ResourceTypes, a.Meta.ResourceTypes, a.dirs(1))

	names := make([]string, 0, len(a.Entries))
	for n := range a.Entries {
		names = append(names, n)
	}
	sort.Strings(names)

	ensured := map[string]bool{}
	for _, n := range names {
		parts := strings.Split(n, "/")
		if len(parts) != 3 {
			continue
		}
		ns, t := parts[0], parts[1]
		_, ok := Resources[t]
		if !ok || !slices.Contains(namespaces, ns) || !slices.Contains(types, t) {
			continue
		}

		var obj unstructured.Unstructured
		js, err := yaml.YAMLToJSON(a.Entries[n])
		if err == nil {
			err = obj.UnmarshalJSON(js)
		}
		if err != nil {
			log.Warn("skip undecodable entry", zap.String("entry", n), zap.Error(err))
			continue
		}
		if !selected(obj.GetLabels(), job.IncludeLabels, job.ExcludeLabels) {
			continue
		}
		if !ensured[ns] {
			if err := m.ensureNamespace(ctx, ns); err != nil {
				return err
			}
			ensured[ns] = true
		}
		obj.SetNamespace(ns)

		applied, err := m.apply(ctx, &obj, t, job.RestoreStrategy)
		if err != nil {
			log.Warn("restore object failed", zap.String("entry", n), zap.Error(err))
			continue
		}
		if applied {
			job.ResourcesRestored[t]++
		}
	}
	return nil
}

func (m *Manager) ensureNamespace(ctx context.Context, ns string) error {
	if ns == "default" {
		return nil
	}
	_, err := m.core.CoreV1().Namespaces().Get(ctx, ns, metav1.GetOptions{})
	if err == nil {
		return nil
	}
	if !apierrors.IsNotFound(err) {
		return fmt.Errorf("get namespace %s: %w", ns, err)
	}
	_, err = m.core.CoreV1().Namespaces().Create(ctx, &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{Name: ns},
	}, metav1.CreateOptions{})
	if err != nil && !apierrors.IsAlreadyExists(err) {
		return fmt.Errorf("create namespace %s: %w", ns, err)
	}
	m.logger.Info("created namespace for restore", zap.String("namespace", ns))
	return nil
}

// apply writes obj according to strategy and reports whether it changed
// the cluster.
func (m *Manager) apply(ctx context.Context, obj *unstructured.Unstructured, resourceType, strategy string) (bool, error) {
	client := m.dyn.Resource(Resources[resourceType]).Namespace(obj.GetNamespace())
	live, err := client.Get(ctx, obj.GetName(), metav1.GetOptions{})
	switch {
	case apierrors.IsNotFound(err):
		if strategy == model.StrategyReplaceOnly {
			return false, nil
		}
		_, err = client.Create(ctx, obj, metav1.CreateOptions{})
		return err == nil, err
	case err != nil:
		return false, err
	}
	if strategy == model.StrategyCreateOnly {
		return false, nil
	}
	obj.SetResourceVersion(live.GetResourceVersion())
	_, err = client.Update(ctx, obj, metav1.UpdateOptions{})
	return err == nil, err
}

func (m *Manager) mockRestore(job *model.RestoreJob) error {
	src, ok := m.Get(job.BackupID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrBackupNotFound, job.BackupID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for t, count := range src.ResourcesBackedUp {
		if !wantsAll(job.ResourceTypes) && !slices.Contains(job.ResourceTypes, t) {
			continue
		}
		job.ResourcesRestored[t] = m.rng.IntN(max(count, 1)) + 1
	}
	return nil
}
