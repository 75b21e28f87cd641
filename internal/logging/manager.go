package logging

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
)

// Settings настройки логгеров компонентов
type Settings struct {
	FileOutput bool     // false: только консоль
	Console    LogLevel // Уровень консоли по умолчанию
	File       LogLevel // Уровень файла по умолчанию
	// Overrides уровень консоли для отдельных компонентов ("storage": DEBUG)
	Overrides map[string]LogLevel
}

// LoggerManager раздаёт логгеры компонентов ("api", "storage", "detached").
// Один логгер на компонент, создаётся при первом обращении.
type LoggerManager struct {
	mu       sync.Mutex
	loggers  map[string]*Logger
	settings Settings
}

var (
	globalManager *LoggerManager
	managerOnce   sync.Once
)

func newLoggerManager() *LoggerManager {
	return &LoggerManager{
		loggers:  make(map[string]*Logger),
		settings: Settings{Console: INFO, File: DEBUG},
	}
}

// GetLoggerManager возвращает глобальный менеджер логгеров
func GetLoggerManager() *LoggerManager {
	managerOnce.Do(func() { globalManager = newLoggerManager() })
	return globalManager
}

// Configure применяет настройки. Уровни меняются и у уже созданных логгеров,
// файловый вывод касается только новых.
func (lm *LoggerManager) Configure(s Settings) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.settings = s
	for component, l := range lm.loggers {
		l.SetLevels(lm.consoleLevel(component), s.File)
	}
}

func (lm *LoggerManager) consoleLevel(component string) LogLevel {
	if lvl, ok := lm.settings.Overrides[component]; ok {
		return lvl
	}
	return lm.settings.Console
}

// Get возвращает логгер компонента. Если файл открыть не удалось, компонент пишет только в консоль.
func (lm *LoggerManager) Get(component string) *Logger {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if l, ok := lm.loggers[component]; ok {
		return l
	}

	console := lm.consoleLevel(component)
	var l *Logger
	if lm.settings.FileOutput {
		var err error
		if l, err = NewLogger(component); err != nil {
			Warn("⚠️ Логгер %s без файла: %v", component, err)
			l = nil
		}
	}
	if l == nil {
		l = NewConsoleLogger(component, os.Stdout, console)
	}
	l.SetLevels(console, lm.settings.File)

	lm.loggers[component] = l
	return l
}

// Components отсортированный список созданных логгеров
func (lm *LoggerManager) Components() []string {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	out := make([]string, 0, len(lm.loggers))
	for c := range lm.loggers {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// CloseAll закрывает все логгеры и забывает их
func (lm *LoggerManager) CloseAll() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	var errs []error
	for component, l := range lm.loggers {
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("логгер %s: %w", component, err))
		}
	}
	lm.loggers = make(map[string]*Logger)
	return errors.Join(errs...)
}

func GetComponentLogger(component string) *Logger {
	return GetLoggerManager().Get(component)
}

func GetStorageLogger() *Logger { return GetComponentLogger("storage") }

func GetAPILogger() *Logger { return GetComponentLogger("api") }

func GetGroupLogger() *Logger { return GetComponentLogger("detached") }
