package storage

import "github.com/sandeepkv93/remindd/internal/model"

type TaskListFilter struct {
	OwnerID string
	Status  model.TaskStatus
	Limit   int
	Offset  int
}
