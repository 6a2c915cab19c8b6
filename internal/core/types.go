package core

import "alquimist/pkg/domain"

type (
	EntityType         = domain.EntityType
	Severity           = domain.Severity
	Base               = domain.Base
	Laboratory         = domain.Laboratory
	Machine            = domain.Machine
	TestRecord         = domain.TestRecord
	Parameter          = domain.Parameter
	InventoryItem      = domain.InventoryItem
	Client             = domain.Client
	ClientTest         = domain.ClientTest
	Assignment         = domain.Assignment
	User               = domain.User
	UserProfile        = domain.UserProfile
	Activity           = domain.Activity
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	RuleViolationError = domain.RuleViolationError
	Rule               = domain.Rule
	RulesEngine        = domain.RulesEngine
	Transaction        = domain.Transaction
	TransactionView    = domain.TransactionView
	PersistentStore    = domain.PersistentStore
)

const (
	EntityLaboratory    = domain.EntityLaboratory
	EntityMachine       = domain.EntityMachine
	EntityTestRecord    = domain.EntityTestRecord
	EntityInventoryItem = domain.EntityInventoryItem
	EntityClient        = domain.EntityClient
	EntityClientTest    = domain.EntityClientTest
	EntityAssignment    = domain.EntityAssignment
	EntityUser          = domain.EntityUser
	EntityActivity      = domain.EntityActivity
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
)

// NewRulesEngine returns an empty rules engine.
func NewRulesEngine() *RulesEngine { return domain.NewRulesEngine() }
