package credits

const (
	operationTransaction  = "credit_transaction"
	operationCharge       = "charge_post"
	operationPremium      = "make_premium"
	operationRecharge     = "recharge"
	operationAdminAdjust  = "admin_adjust"
	operationDeletePost   = "delete_post"
	operationUpdateStatus = "update_post_status"

	operationStatusOK    = "ok"
	operationStatusError = "error"

	settingKeyPostCostPrefix    = "post_costs."
	settingKeyPremiumTop24h     = "premium_costs.top_24h"
	settingKeyPremiumTop72h     = "premium_costs.top_72h"
	settingKeyPremiumTop168h    = "premium_costs.top_168h"
	settingKeyPremiumHighlight  = "premium_costs.highlight"
	settingKeyRechargeRates     = "recharge_rates"
	defaultPremiumDurationHours = 24

	defaultHistoryLimit = 50
	maxHistoryLimit     = 200

	referenceKindRecharge      = "recharge"
	referenceKindPremiumPrefix = "premium_"
)
