package models

import (
	"github.com/rentledger/backend/internal/domain/provider"
)

// UtilityProviderModel is the persistence model for utility providers.
type UtilityProviderModel struct {
	AggregateModel
	Name          string               `gorm:"type:varchar(200);not null"`
	ServiceType   provider.ServiceType `gorm:"type:varchar(20);not null;index"`
	Keywords      provider.Keywords    `gorm:"type:jsonb;default:'[]'"`
	INN           string               `gorm:"type:varchar(12)"`
	AccountNumber string               `gorm:"type:varchar(20)"`
	BankName      string               `gorm:"type:varchar(200)"`
	Phone         string               `gorm:"type:varchar(30)"`
	Active        bool                 `gorm:"not null;default:true;index"`
}

// TableName returns the table name for GORM
func (UtilityProviderModel) TableName() string {
	return "utility_providers"
}

// ToDomain converts the persistence model to a domain UtilityProvider entity.
func (m *UtilityProviderModel) ToDomain() *provider.UtilityProvider {
	return &provider.UtilityProvider{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Name:              m.Name,
		ServiceType:       m.ServiceType,
		Keywords:          m.Keywords,
		INN:               m.INN,
		AccountNumber:     m.AccountNumber,
		BankName:          m.BankName,
		Phone:             m.Phone,
		Active:            m.Active,
	}
}

// FromDomain populates the persistence model from a domain UtilityProvider entity.
func (m *UtilityProviderModel) FromDomain(p *provider.UtilityProvider) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.Name = p.Name
	m.ServiceType = p.ServiceType
	m.Keywords = p.Keywords
	m.INN = p.INN
	m.AccountNumber = p.AccountNumber
	m.BankName = p.BankName
	m.Phone = p.Phone
	m.Active = p.Active
}

// UtilityProviderModelFromDomain creates a new persistence model from a domain UtilityProvider.
func UtilityProviderModelFromDomain(p *provider.UtilityProvider) *UtilityProviderModel {
	m := &UtilityProviderModel{}
	m.FromDomain(p)
	return m
}

// ManagementCompanyModel is the persistence model for management companies.
type ManagementCompanyModel struct {
	AggregateModel
	Name      string               `gorm:"type:varchar(200);not null"`
	INN       string               `gorm:"type:varchar(12)"`
	Phone     string               `gorm:"type:varchar(30)"`
	Email     string               `gorm:"type:varchar(200)"`
	Providers provider.ProviderIDs `gorm:"type:jsonb;default:'[]'"`
}

// TableName returns the table name for GORM
func (ManagementCompanyModel) TableName() string {
	return "management_companies"
}

// ToDomain converts the persistence model to a domain ManagementCompany entity.
func (m *ManagementCompanyModel) ToDomain() *provider.ManagementCompany {
	return &provider.ManagementCompany{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Name:              m.Name,
		INN:               m.INN,
		Phone:             m.Phone,
		Email:             m.Email,
		Providers:         m.Providers,
	}
}

// FromDomain populates the persistence model from a domain ManagementCompany entity.
func (m *ManagementCompanyModel) FromDomain(c *provider.ManagementCompany) {
	m.FromDomainAggregateRoot(c.BaseAggregateRoot)
	m.Name = c.Name
	m.INN = c.INN
	m.Phone = c.Phone
	m.Email = c.Email
	m.Providers = c.Providers
}

// ManagementCompanyModelFromDomain creates a new persistence model from a domain ManagementCompany.
func ManagementCompanyModelFromDomain(c *provider.ManagementCompany) *ManagementCompanyModel {
	m := &ManagementCompanyModel{}
	m.FromDomain(c)
	return m
}
