package notification

import (
	"errors"
	"fmt"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeTasks(n, offset int) []*asynq.TaskInfo {
	out := make([]*asynq.TaskInfo, n)
	for i := range out {
		out[i] = &asynq.TaskInfo{
			ID:   fmt.Sprintf("%d", offset+i),
			Type: TypeDeliverReminder,
		}
	}
	return out
}

func TestListAllPagesDrainsEveryPage(t *testing.T) {
	pages := [][]*asynq.TaskInfo{
		makeTasks(listPageSize, 0),
		makeTasks(listPageSize, listPageSize),
		makeTasks(3, 2*listPageSize),
	}
	calls := 0
	list := func(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
		assert.Equal(t, QueueReminders, queue)
		require.Less(t, calls, len(pages), "kept paging past the short page")
		page := pages[calls]
		calls++
		return page, nil
	}

	tasks, err := listAllPages(list)
	require.NoError(t, err)
	assert.Len(t, tasks, 2*listPageSize+3)
	assert.Equal(t, 3, calls, "stops at the first short page")
	// Nothing beyond the first page went missing.
	assert.Equal(t, fmt.Sprintf("%d", listPageSize), tasks[listPageSize].ID)
	assert.Equal(t, fmt.Sprintf("%d", 2*listPageSize+2), tasks[len(tasks)-1].ID)
}

func TestListAllPagesSingleShortPage(t *testing.T) {
	calls := 0
	list := func(string, ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
		calls++
		return makeTasks(2, 0), nil
	}

	tasks, err := listAllPages(list)
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
	assert.Equal(t, 1, calls)
}

func TestListAllPagesPropagatesErrors(t *testing.T) {
	boom := errors.New("redis down")
	calls := 0
	list := func(string, ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
		calls++
		if calls == 2 {
			return nil, boom
		}
		return makeTasks(listPageSize, 0), nil
	}

	_, err := listAllPages(list)
	assert.ErrorIs(t, err, boom)
}
