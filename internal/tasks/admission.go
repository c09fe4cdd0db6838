package tasks

import (
	"errors"
	"fmt"
)

var ErrInsufficientBalance = errors.New("insufficient balance")

type AdmissionError struct {
	Balance      float64
	ExpectedCost float64
}

func (e *AdmissionError) Error() string {
	return fmt.Sprintf("Insufficient balance (%s) for expected cost %s.", FormatDollars(e.Balance), FormatDollars(e.ExpectedCost))
}

func (e *AdmissionError) Unwrap() error {
	return ErrInsufficientBalance
}

// Shortfall is how much more balance the task needs.
func (e *AdmissionError) Shortfall() float64 {
	return e.ExpectedCost - e.Balance
}

// AdmissionController decides whether a draft task may be started given a
// cached balance snapshot. The remote API re-checks on start, so an unknown
// balance (nil) admits the task.
type AdmissionController struct {
	pricing Pricing
}

func NewAdmissionController(pricing Pricing) *AdmissionController {
	return &AdmissionController{pricing: pricing}
}

func (c *AdmissionController) Pricing() Pricing {
	return c.pricing
}

func (c *AdmissionController) ExpectedCost(task Task) float64 {
	epochs := task.Epochs
	if epochs <= 0 {
		epochs = task.Hyperparameters.Epochs
	}
	if epochs <= 0 {
		return 0
	}
	return float64(epochs) * c.pricing.CostPerEpoch(task.BaseModelId, task.BaseModelName)
}

func (c *AdmissionController) CanStart(task Task, balance *float64) bool {
	return c.Admit(task, balance) == nil
}

// Admit returns an *AdmissionError when the balance is known and below the
// expected cost of the task.
func (c *AdmissionController) Admit(task Task, balance *float64) error {
	if balance == nil {
		return nil
	}
	cost := c.ExpectedCost(task)
	if cost > *balance {
		return &AdmissionError{Balance: *balance, ExpectedCost: cost}
	}
	return nil
}

// CheckStart applies the lifecycle policy and then admission.
func (c *AdmissionController) CheckStart(task Task, balance *float64) error {
	if err := Check(task.Status, ActionStart); err != nil {
		return err
	}
	return c.Admit(task, balance)
}

func FormatDollars(v float64) string {
	if v < 0 {
		return fmt.Sprintf("-$%.2f", -v)
	}
	return fmt.Sprintf("$%.2f", v)
}
