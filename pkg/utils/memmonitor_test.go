package utils

import "testing"

func TestMemoryMonitorLevels(t *testing.T) {
	m := NewMemoryMonitor(1000)

	m.UpdateUsage(100)
	if got := m.CheckMemory(); got != MemoryNormal {
		t.Errorf("CheckMemory() at 10%% = %v, want Normal", got)
	}

	m.UpdateUsage(850)
	if got := m.CheckMemory(); got != MemoryWarning {
		t.Errorf("CheckMemory() at 85%% = %v, want Warning", got)
	}

	m.UpdateUsage(1000)
	if got := m.CheckMemory(); got != MemoryCritical {
		t.Errorf("CheckMemory() at 100%% = %v, want Critical", got)
	}
}

func TestMemoryMonitorUsagePercentage(t *testing.T) {
	m := NewMemoryMonitor(2000)
	m.UpdateUsage(500)
	if got := m.GetUsagePercentage(); got != 25 {
		t.Errorf("GetUsagePercentage() = %v, want 25", got)
	}
}

func TestMemoryMonitorZeroLimit(t *testing.T) {
	m := NewMemoryMonitor(0)
	m.UpdateUsage(100)
	if got := m.GetUsagePercentage(); got != 0 {
		t.Errorf("GetUsagePercentage() with zero limit = %v, want 0 (avoid div-by-zero)", got)
	}
}

func TestMemoryLevelString(t *testing.T) {
	cases := map[MemoryLevel]string{
		MemoryNormal:   "normal",
		MemoryWarning:  "warning",
		MemoryCritical: "critical",
	}
	for l, want := range cases {
		if got := l.String(); got != want {
			t.Errorf("MemoryLevel(%d).String() = %q, want %q", l, got, want)
		}
	}
}
