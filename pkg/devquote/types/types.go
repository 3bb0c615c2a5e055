// Package types exposes the devquote data model to programs embedding the
// client.
package types

import (
	"github.com/felixgeelhaar/devquote/internal/api"
	"github.com/felixgeelhaar/devquote/internal/domain"
	"github.com/felixgeelhaar/devquote/internal/session"
)

// Identity and session.
type (
	User           = domain.User
	Profile        = domain.Profile
	ProfileType    = domain.ProfileType
	Permission     = domain.Permission
	Credentials    = domain.Credentials
	PasswordChange = domain.PasswordChange
	ProfileUpdate  = domain.ProfileUpdate
	TokenPair      = domain.TokenPair
	State          = session.State
)

// Profile types.
const (
	ProfileAdmin   = domain.ProfileAdmin
	ProfileManager = domain.ProfileManager
	ProfileUser    = domain.ProfileUser
	ProfileCustom  = domain.ProfileCustom
)

// Resources.
type (
	Project        = api.Project
	ProjectInput   = api.ProjectInput
	Task           = api.Task
	TaskInput      = api.TaskInput
	SubTask        = api.SubTask
	TaskCode       = domain.TaskCode
	TaskPriority   = domain.TaskPriority
	TaskType       = domain.TaskType
	Requester      = api.Requester
	RequesterInput = api.RequesterInput
	ProjectPage    = api.Page[api.Project]
	TaskPage       = api.Page[api.Task]
	RequesterPage  = api.Page[api.Requester]
	ListOptions    = api.ListOptions
	SortField      = api.SortField
)

// Deliveries.
type (
	Delivery            = api.Delivery
	DeliveryItem        = api.DeliveryItem
	DeliveryInput       = api.DeliveryInput
	DeliveryItemInput   = api.DeliveryItemInput
	DeliveryGroup       = api.DeliveryGroup
	DeliveryStatus      = domain.DeliveryStatus
	DeliveryStatusCount = api.DeliveryStatusCount
	AvailableTask       = api.AvailableTask
	AvailableProject    = api.AvailableProject
	DeliveryGroupPage   = api.Page[api.DeliveryGroup]
	AvailableTaskPage   = api.Page[api.AvailableTask]
)

// Delivery statuses in workflow order.
const (
	DeliveryPending      = domain.DeliveryPending
	DeliveryDevelopment  = domain.DeliveryDevelopment
	DeliveryDelivered    = domain.DeliveryDelivered
	DeliveryHomologation = domain.DeliveryHomologation
	DeliveryApproved     = domain.DeliveryApproved
	DeliveryRejected     = domain.DeliveryRejected
	DeliveryProduction   = domain.DeliveryProduction
)

// APIError is returned for every failed backend call.
type APIError = api.APIError
