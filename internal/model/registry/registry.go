package registry

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/retainly/retainly/internal/model/domain"
	"github.com/retainly/retainly/internal/model/estimator"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ChurnHandle is the served classifier: immutable once published.
type ChurnHandle struct {
	Version       string
	Algorithm     string
	SchemaVersion int
	Classifier    estimator.Classifier
}

// CLVHandle is the served regressor: immutable once published.
type CLVHandle struct {
	Version       string
	Algorithm     string
	SchemaVersion int
	Regressor     estimator.Regressor
}

// Registry is the single-writer, multi-reader reference cell for the active
// models. Handles start absent and are swapped only by a fully successful
// training run; readers never observe a half-updated model.
type Registry struct {
	db  *gorm.DB
	log *zap.Logger

	churn atomic.Pointer[ChurnHandle]
	clv   atomic.Pointer[CLVHandle]
}

func New(conn *gorm.DB, log *zap.Logger) *Registry {
	return &Registry{
		db:  conn,
		log: log.Named("model.registry"),
	}
}

func (r *Registry) ActiveChurn() (*ChurnHandle, bool) {
	handle := r.churn.Load()
	return handle, handle != nil
}

func (r *Registry) ActiveCLV() (*CLVHandle, bool) {
	handle := r.clv.Load()
	return handle, handle != nil
}

// ActiveVersions reports the serving versions, empty when absent.
func (r *Registry) ActiveVersions() (churnVersion, clvVersion string) {
	if handle := r.churn.Load(); handle != nil {
		churnVersion = handle.Version
	}
	if handle := r.clv.Load(); handle != nil {
		clvVersion = handle.Version
	}
	return churnVersion, clvVersion
}

// Activation carries the outcome of one training run. CLV is optional: a
// run without enough revenue history activates only the classifier.
type Activation struct {
	Churn      domain.Artifact
	Classifier estimator.Classifier
	CLV        *domain.Artifact
	Regressor  estimator.Regressor
}

// Activate persists the run's artifacts in a single transaction, demoting
// the previous active ones, and publishes the serving handles only after
// commit. A failure anywhere leaves the artifact table and both handles
// untouched, so a run never goes half live.
func (r *Registry) Activate(ctx context.Context, act Activation) error {
	act.Churn.Active = true
	if act.CLV != nil {
		act.CLV.Active = true
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := persistArtifact(tx, &act.Churn); err != nil {
			return err
		}
		if act.CLV != nil {
			return persistArtifact(tx, act.CLV)
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.churn.Store(&ChurnHandle{
		Version:       act.Churn.Version,
		Algorithm:     act.Churn.Algorithm,
		SchemaVersion: act.Churn.FeatureSchemaVersion,
		Classifier:    act.Classifier,
	})
	if act.CLV != nil {
		r.clv.Store(&CLVHandle{
			Version:       act.CLV.Version,
			Algorithm:     act.CLV.Algorithm,
			SchemaVersion: act.CLV.FeatureSchemaVersion,
			Regressor:     act.Regressor,
		})
	}
	r.log.Info("models activated",
		zap.String("churn_version", act.Churn.Version),
		zap.String("algorithm", act.Churn.Algorithm),
	)
	return nil
}

// ActivateChurn persists the artifact, demotes the previous active one and
// publishes the handle. The pointer swap happens only after the transaction
// commits.
func (r *Registry) ActivateChurn(ctx context.Context, artifact domain.Artifact, clf estimator.Classifier) error {
	if err := r.persist(ctx, &artifact); err != nil {
		return err
	}
	r.churn.Store(&ChurnHandle{
		Version:       artifact.Version,
		Algorithm:     artifact.Algorithm,
		SchemaVersion: artifact.FeatureSchemaVersion,
		Classifier:    clf,
	})
	r.log.Info("churn model activated",
		zap.String("version", artifact.Version),
		zap.String("algorithm", artifact.Algorithm),
	)
	return nil
}

// ActivateCLV is the regressor counterpart of ActivateChurn.
func (r *Registry) ActivateCLV(ctx context.Context, artifact domain.Artifact, reg estimator.Regressor) error {
	if err := r.persist(ctx, &artifact); err != nil {
		return err
	}
	r.clv.Store(&CLVHandle{
		Version:       artifact.Version,
		Algorithm:     artifact.Algorithm,
		SchemaVersion: artifact.FeatureSchemaVersion,
		Regressor:     reg,
	})
	r.log.Info("clv model activated", zap.String("version", artifact.Version))
	return nil
}

// LoadActive restores serving handles from persisted artifacts, typically
// at process start. Absent artifacts leave the handles absent.
func (r *Registry) LoadActive(ctx context.Context) error {
	var artifacts []domain.Artifact
	if err := r.db.WithContext(ctx).Where("active = ?", true).Find(&artifacts).Error; err != nil {
		return fmt.Errorf("load active artifacts: %w", err)
	}

	for _, artifact := range artifacts {
		switch artifact.Kind {
		case domain.KindChurn:
			clf, err := estimator.UnmarshalClassifier(artifact.Algorithm, artifact.Parameters)
			if err != nil {
				return fmt.Errorf("decode churn artifact %s: %w", artifact.Version, err)
			}
			r.churn.Store(&ChurnHandle{
				Version:       artifact.Version,
				Algorithm:     artifact.Algorithm,
				SchemaVersion: artifact.FeatureSchemaVersion,
				Classifier:    clf,
			})
		case domain.KindCLV:
			reg, err := estimator.UnmarshalRegressor(artifact.Parameters)
			if err != nil {
				return fmt.Errorf("decode clv artifact %s: %w", artifact.Version, err)
			}
			r.clv.Store(&CLVHandle{
				Version:       artifact.Version,
				Algorithm:     artifact.Algorithm,
				SchemaVersion: artifact.FeatureSchemaVersion,
				Regressor:     reg,
			})
		default:
			r.log.Warn("unknown artifact kind skipped", zap.String("kind", artifact.Kind))
		}
	}
	return nil
}

// ListArtifacts returns every persisted artifact, newest first.
func (r *Registry) ListArtifacts(ctx context.Context) ([]domain.Artifact, error) {
	var artifacts []domain.Artifact
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&artifacts).Error
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	return artifacts, nil
}

func (r *Registry) persist(ctx context.Context, artifact *domain.Artifact) error {
	artifact.Active = true
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return persistArtifact(tx, artifact)
	})
}

func persistArtifact(tx *gorm.DB, artifact *domain.Artifact) error {
	if err := tx.Model(&domain.Artifact{}).
		Where("kind = ? AND active = ?", artifact.Kind, true).
		Update("active", false).Error; err != nil {
		return fmt.Errorf("demote active %s artifact: %w", artifact.Kind, err)
	}
	if err := tx.Create(artifact).Error; err != nil {
		return fmt.Errorf("persist %s artifact: %w", artifact.Kind, err)
	}
	return nil
}
