package server

import (
	"context"

	adminapp "github.com/sngm3741/cafe-club/api/internal/admin/application"
	admindomain "github.com/sngm3741/cafe-club/api/internal/admin/domain"
	publicdomain "github.com/sngm3741/cafe-club/api/internal/public/domain"
)

type stubReconciler struct{}

var _ adminapp.CafeService = stubReconciler{}

func (stubReconciler) List(context.Context, adminapp.CafeFilter, adminapp.Paging) ([]admindomain.Cafe, error) {
	return nil, nil
}

func (stubReconciler) Detail(context.Context, string) (*admindomain.Cafe, error) {
	return nil, adminapp.ErrCafeNotFound
}

func (stubReconciler) Register(context.Context, adminapp.UpsertCafeCommand, []adminapp.ImageUpload) (*admindomain.Cafe, error) {
	return nil, adminapp.ErrInvalidCafe
}

func (stubReconciler) Update(context.Context, string, adminapp.UpsertCafeCommand) (*admindomain.Cafe, error) {
	return nil, adminapp.ErrInvalidCafe
}

func (stubReconciler) Reconcile(context.Context, string) (*publicdomain.RatingAggregate, error) {
	agg := publicdomain.NewRatingAggregate()
	return &agg, nil
}

func (stubReconciler) ReconcileAll(context.Context) (int, error) {
	return 0, nil
}
