package decomposer

import (
	"fmt"
	"testing"

	"github.com/kailas-cloud/dishfinder/internal/domain"
)

func TestDecompose_Components(t *testing.T) {
	intent := domain.QueryIntent{
		Type:         domain.QueryComplex,
		SearchPhrase: "острый суп и салат",
		Components: []domain.ComponentSpec{
			{Name: "суп", SearchPhrase: "острый суп"},
			{Name: "", SearchPhrase: "салат"},
			{Name: "напиток", SearchPhrase: ""},
		},
	}

	tasks := Decompose(intent)
	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(tasks))
	}
	want := []domain.SearchTask{
		{ID: "task_0", SearchPhrase: "острый суп", Description: "суп", Priority: 1},
		{ID: "task_1", SearchPhrase: "салат", Description: "компонент 2", Priority: 2},
		{ID: "task_2", SearchPhrase: "острый суп и салат", Description: "напиток", Priority: 3},
	}
	for i := range want {
		if tasks[i] != want[i] {
			t.Errorf("task %d = %+v, want %+v", i, tasks[i], want[i])
		}
	}
}

func TestDecompose_CapsComponents(t *testing.T) {
	var comps []domain.ComponentSpec
	for i := range 8 {
		comps = append(comps, domain.ComponentSpec{Name: fmt.Sprintf("c%d", i), SearchPhrase: "x"})
	}
	tasks := Decompose(domain.QueryIntent{SearchPhrase: "x", Components: comps})
	if len(tasks) != MaxTasks {
		t.Fatalf("expected %d tasks, got %d", MaxTasks, len(tasks))
	}
	for i, task := range tasks {
		if task.Priority != i+1 {
			t.Errorf("task %d priority = %d", i, task.Priority)
		}
	}
}

func TestDecompose_MultiCourse(t *testing.T) {
	tests := []struct {
		name        string
		miniContext string
		phrase      string
	}{
		{"lunch in mini-context", "обед, трёх, блюд", "обед из трех блюд"},
		{"inflected", "комплексный, обеда", "комплексный обед"},
		{"set word", "сет, недорогой", "недорогой сет"},
		{"phrase used when mini-context empty", "", "бизнес ланч"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks := Decompose(domain.QueryIntent{
				Type:               domain.QueryMenu,
				SearchPhrase:       tt.phrase,
				MiniContext:        tt.miniContext,
				NeedsDecomposition: true,
			})
			if len(tasks) != 3 {
				t.Fatalf("expected 3 courses, got %+v", tasks)
			}
			if tasks[0].ID != "starter" || tasks[0].SearchPhrase != starterPhrase {
				t.Errorf("unexpected starter: %+v", tasks[0])
			}
			if tasks[1].ID != "main" || tasks[1].SearchPhrase != tt.phrase || tasks[1].Priority != 2 {
				t.Errorf("unexpected main: %+v", tasks[1])
			}
			if tasks[2].ID != "dessert" || tasks[2].SearchPhrase != dessertPhrase {
				t.Errorf("unexpected dessert: %+v", tasks[2])
			}
		})
	}
}

func TestDecompose_SingleTask(t *testing.T) {
	tests := []struct {
		name   string
		intent domain.QueryIntent
		phrase string
	}{
		{"exact", domain.QueryIntent{Type: domain.QueryExact, SearchPhrase: "борщ"}, "борщ"},
		{"decomposition without cue", domain.QueryIntent{Type: domain.QueryMenu, SearchPhrase: "ужин", MiniContext: "ужин", NeedsDecomposition: true}, "ужин"},
		{"cue without decomposition", domain.QueryIntent{Type: domain.QueryExact, SearchPhrase: "обед", MiniContext: "обед"}, "обед"},
		{"setup is not set", domain.QueryIntent{SearchPhrase: "сетка", MiniContext: "сетка", NeedsDecomposition: true}, "сетка"},
		{"empty phrase", domain.QueryIntent{Type: domain.QueryVague}, genericPhrase},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks := Decompose(tt.intent)
			if len(tasks) != 1 {
				t.Fatalf("expected 1 task, got %+v", tasks)
			}
			if tasks[0].ID != "main" || tasks[0].SearchPhrase != tt.phrase || tasks[0].Priority != 1 {
				t.Errorf("unexpected task: %+v", tasks[0])
			}
		})
	}
}
