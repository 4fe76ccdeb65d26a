package main

import (
	"fmt"
	"sync"
)

// Calculator is a small remote interface used to exercise the dispatch and
// channel layers end to end: three synchronous methods (Add, plus Divide and
// LogChecked, which can fail), one synchronous boolean method (IsReady), and
// one asynchronous (fire-and-forget) method, Log, the only one with no
// return values.
type Calculator interface {
	Add(a, b int32) int32
	Divide(a, b int32) (int32, error)
	IsReady() bool
	Log(msg string)
	LogChecked(msg string) error
}

type calculatorImpl struct {
	mu      sync.Mutex
	entries []string
}

func newCalculatorImpl() *calculatorImpl { return &calculatorImpl{} }

func (c *calculatorImpl) Add(a, b int32) int32 { return a + b }

func (c *calculatorImpl) Divide(a, b int32) (int32, error) {
	if b == 0 {
		return 0, fmt.Errorf("division by zero")
	}
	return a / b, nil
}

func (c *calculatorImpl) IsReady() bool { return true }

func (c *calculatorImpl) Log(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, msg)
}

func (c *calculatorImpl) LogChecked(msg string) error {
	if msg == "" {
		return fmt.Errorf("empty log message")
	}
	c.Log(msg)
	return nil
}
