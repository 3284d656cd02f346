package config

import (
	"net"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/thoas/go-funk"

	"github.com/ecst/vbuild/internal/gateway"
)

type ValidationRule struct {
	Rule func(v *validator.Validate)
}

// Validator wraps go-playground/validator with the rules for the closed
// enumerations of the desired-state document.
type Validator struct {
	validator *validator.Validate
}

func NewValidator() *Validator {
	v := &Validator{validator: validator.New()}
	v.Register(NewDesiredStateValidationRules()...)
	return v
}

func (v *Validator) Register(rules ...ValidationRule) {
	for _, r := range rules {
		r.Rule(v.validator)
	}
}

func (v *Validator) Struct(s any) error {
	return v.validator.Struct(s)
}

func registerFn(tag string, fn func(fl validator.FieldLevel) bool) func(v *validator.Validate) {
	return func(v *validator.Validate) {
		_ = v.RegisterValidation(tag, fn)
	}
}

func oneOf(values ...string) func(fl validator.FieldLevel) bool {
	return func(fl validator.FieldLevel) bool {
		return funk.ContainsString(values, fl.Field().String())
	}
}

func NewDesiredStateValidationRules() []ValidationRule {
	return []ValidationRule{
		{Rule: registerFn("admission_control", oneOf(
			string(gateway.AdmissionControlResourcePercentage),
			string(gateway.AdmissionControlSlotPolicy),
			string(gateway.AdmissionControlDisabled),
		))},
		{Rule: registerFn("automation_level", oneOf(
			string(gateway.AutomationManual),
			string(gateway.AutomationPartiallyAutomated),
			string(gateway.AutomationFullyAutomated),
		))},
		{Rule: registerFn("load_balancing", loadBalancingValidator)},
		{Rule: registerFn("portgroup_type", portGroupTypeValidator)},
		{Rule: registerFn("claim_mode", oneOf(ClaimModeAutomatic, ClaimModeManual))},
		{Rule: registerFn("service_policy", oneOf(
			string(gateway.ServicePolicyOn),
			string(gateway.ServicePolicyOff),
			string(gateway.ServicePolicyAutomatic),
		))},
		{Rule: registerFn("syslog_protocol", oneOf("udp", "tcp", "ssl"))},
		{Rule: registerFn("lockdown_mode", lockdownValidator)},
		{Rule: registerFn("subnet_mask", subnetMaskValidator)},
	}
}

func loadBalancingValidator(fl validator.FieldLevel) bool {
	_, ok := gateway.LoadBalancing(fl.Field().String()).Policy()
	return ok
}

func portGroupTypeValidator(fl validator.FieldLevel) bool {
	return gateway.PortGroupType(fl.Field().String()).Valid()
}

func lockdownValidator(fl validator.FieldLevel) bool {
	_, ok := gateway.LockdownMode(strings.ToLower(fl.Field().String())).Level()
	return ok
}

func subnetMaskValidator(fl validator.FieldLevel) bool {
	ip := net.ParseIP(fl.Field().String()).To4()
	if ip == nil {
		return false
	}
	ones, bits := net.IPMask(ip).Size()
	return bits == 32 && ones > 0
}
