// Package models holds the GORM models behind the asset and audit repositories.
// Each model converts to and from its domain type with ToDomain / From*.
//
// Structure:
// - base.go: base persistence models (BaseModel, TenantAggregateModel)
// - asset.go: asset store models (Location, Asset, Kit, Custodian, Custody, Code)
// - audit.go: audit models (AuditSession, AuditExpectedAsset, AuditScan, AuditAttachment)
package models
