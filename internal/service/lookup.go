package service

import (
	"context"
	"errors"
	"fmt"

	"frontline/coaching-app/internal/domain"
	"frontline/coaching-app/internal/repository"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func findClient(ctx context.Context, clients repository.ClientRepository, id primitive.ObjectID) (*domain.Client, error) {
	client, err := clients.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("get client: %w", err)
	}
	return client, nil
}

func findUser(ctx context.Context, users repository.UserRepository, id primitive.ObjectID) (*domain.User, error) {
	user, err := users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func checkUser(ctx context.Context, users repository.UserRepository, id primitive.ObjectID) error {
	_, err := findUser(ctx, users, id)
	return err
}

// assignmentLookup resolves a client's active program assignment through the
// client's explicit activeAssignmentId reference.
type assignmentLookup struct {
	assignments repository.ProgramAssignmentRepository
}

// active returns nil without error when the client has no usable assignment.
func (l assignmentLookup) active(ctx context.Context, client *domain.Client) (*domain.ProgramAssignment, error) {
	if client.ActiveAssignment == nil {
		return nil, nil
	}
	assignment, err := l.assignments.GetByID(ctx, *client.ActiveAssignment)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Warnf("client %s points at missing assignment %s", client.ID.Hex(), client.ActiveAssignment.Hex())
			return nil, nil
		}
		return nil, fmt.Errorf("get active assignment: %w", err)
	}
	if !assignment.IsActive() {
		return nil, nil
	}
	return assignment, nil
}

// workoutDays returns the active assignment's days, or nil.
func (l assignmentLookup) workoutDays(ctx context.Context, client *domain.Client) ([]string, error) {
	assignment, err := l.active(ctx, client)
	if err != nil || assignment == nil {
		return nil, err
	}
	return assignment.WorkoutDays, nil
}
