package i18n

// Ключи сообщений каталога.
const (
	KeyTrialStarted      = "trial.started"
	KeyTrialAlreadyUsed  = "trial.already_used"
	KeyTrialEnded        = "trial.ended"
	KeyTrialExpired      = "trial.expired"
	KeyTrialCleared      = "trial.cleared"
	KeyTrialInvalidPhone = "trial.invalid_phone"

	KeySubscriptionNone              = "subscription.none"
	KeySubscriptionNotActive         = "subscription.not_active"
	KeySubscriptionCannotUpgrade     = "subscription.cannot_upgrade"
	KeySubscriptionUnknownPlan       = "subscription.unknown_plan"
	KeySubscriptionInvalidTransition = "subscription.invalid_transition"
	KeySubscriptionPurchased         = "subscription.purchased"
	KeySubscriptionUpgraded          = "subscription.upgraded"
	KeySubscriptionCancelled         = "subscription.cancelled"
	KeySubscriptionRenewed           = "subscription.renewed"
	KeySubscriptionAlreadyRenewing   = "subscription.already_renewing"
	KeySubscriptionReminderTitle     = "subscription.reminder_title"
	KeySubscriptionReminderBody      = "subscription.reminder_body"

	KeyReferralInvalidCode       = "referral.invalid_code"
	KeyReferralCodeNotFound      = "referral.code_not_found"
	KeyReferralSelf              = "referral.self"
	KeyReferralAlreadyReferred   = "referral.already_referred"
	KeyReferralNotFound          = "referral.not_found"
	KeyReferralAlreadyCompleted  = "referral.already_completed"
	KeyReferralExpired           = "referral.expired"
	KeyReferralPurchaseRequired  = "referral.purchase_required"
	KeyReferralCodeGenerated     = "referral.code_generated"
	KeyReferralProcessed         = "referral.processed"
	KeyReferralRewardGranted     = "referral.reward_granted"
	KeyReferralRewardPending     = "referral.reward_pending"
	KeyReferralNotificationTitle = "referral.notification_title"
	KeyReferralNotificationBody  = "referral.notification_body"

	KeyErrorInternal       = "error.internal"
	KeyErrorInvalidRequest = "error.invalid_request"
	KeyErrorUnauthorized   = "error.unauthorized"
	KeyErrorTooMany        = "error.too_many_requests"
	KeyErrorInstallation   = "error.installation_required"
)

var messagesTR = map[string]string{
	KeyTrialStarted:      "%d günlük ücretsiz deneme süreniz başladı",
	KeyTrialAlreadyUsed:  "Bu telefon numarası ile deneme süresi daha önce kullanılmış",
	KeyTrialEnded:        "Deneme süresi sonlandırıldı",
	KeyTrialExpired:      "Deneme süreniz sona erdi",
	KeyTrialCleared:      "Deneme verileri temizlendi",
	KeyTrialInvalidPhone: "Geçerli bir telefon numarası girin",

	KeySubscriptionNone:              "Abonelik bulunamadı",
	KeySubscriptionNotActive:         "Aktif abonelik bulunamadı",
	KeySubscriptionCannotUpgrade:     "Bu abonelik yükseltilemez",
	KeySubscriptionUnknownPlan:       "Geçersiz plan",
	KeySubscriptionInvalidTransition: "Bu işlem aboneliğin mevcut durumunda yapılamaz",
	KeySubscriptionPurchased:         "Aboneliğiniz başarıyla oluşturuldu",
	KeySubscriptionUpgraded:          "Planınız %s olarak güncellendi",
	KeySubscriptionCancelled:         "Aboneliğiniz iptal edildi. %s tarihine kadar kullanmaya devam edebilirsiniz",
	KeySubscriptionRenewed:           "Otomatik yenileme etkinleştirildi",
	KeySubscriptionAlreadyRenewing:   "Otomatik yenileme zaten etkin",
	KeySubscriptionReminderTitle:     "Aboneliğiniz sona eriyor",
	KeySubscriptionReminderBody:      "Aboneliğinizin bitmesine %d gün kaldı",

	KeyReferralInvalidCode:       "Geçersiz referans kodu",
	KeyReferralCodeNotFound:      "Referans kodu bulunamadı",
	KeyReferralSelf:              "Kendi referans kodunuzu kullanamazsınız",
	KeyReferralAlreadyReferred:   "Bu hesap için daha önce referans kodu kullanılmış",
	KeyReferralNotFound:          "Referans kaydı bulunamadı",
	KeyReferralAlreadyCompleted:  "Bu referans ödülü zaten alınmış",
	KeyReferralExpired:           "Referans kaydının süresi dolmuş",
	KeyReferralPurchaseRequired:  "Ödül, davet edilen kullanıcı abone olduktan sonra verilir",
	KeyReferralCodeGenerated:     "Referans kodunuz oluşturuldu",
	KeyReferralProcessed:         "Referans kodu başarıyla uygulandı",
	KeyReferralRewardGranted:     "Referans ödülü verildi: %d gün",
	KeyReferralRewardPending:     "Referans tamamlandı, %d günlük ödül kısa süre içinde tanımlanacak",
	KeyReferralNotificationTitle: "Referans Ödülü",
	KeyReferralNotificationBody:  "Davet ettiğiniz kullanıcı abone oldu! %d gün ücretsiz abonelik kazandınız",

	KeyErrorInternal:       "Beklenmeyen bir hata oluştu, lütfen tekrar deneyin",
	KeyErrorInvalidRequest: "Geçersiz istek",
	KeyErrorUnauthorized:   "Oturum doğrulanamadı",
	KeyErrorTooMany:        "Çok fazla istek, lütfen biraz bekleyin",
	KeyErrorInstallation:   "Cihaz kimliği gerekli",
}

var messagesEN = map[string]string{
	KeyTrialStarted:      "Your %d-day free trial has started",
	KeyTrialAlreadyUsed:  "This phone number has already used its free trial",
	KeyTrialEnded:        "Trial ended",
	KeyTrialExpired:      "Your trial has expired",
	KeyTrialCleared:      "Trial data cleared",
	KeyTrialInvalidPhone: "Enter a valid phone number",

	KeySubscriptionNone:              "No subscription found",
	KeySubscriptionNotActive:         "No active subscription found",
	KeySubscriptionCannotUpgrade:     "This subscription cannot be upgraded",
	KeySubscriptionUnknownPlan:       "Invalid plan",
	KeySubscriptionInvalidTransition: "This action is not available in the current subscription state",
	KeySubscriptionPurchased:         "Your subscription has been created",
	KeySubscriptionUpgraded:          "Your plan has been changed to %s",
	KeySubscriptionCancelled:         "Your subscription was cancelled. You can keep using it until %s",
	KeySubscriptionRenewed:           "Auto-renewal enabled",
	KeySubscriptionAlreadyRenewing:   "Auto-renewal is already enabled",
	KeySubscriptionReminderTitle:     "Your subscription is ending",
	KeySubscriptionReminderBody:      "%d days left on your subscription",

	KeyReferralInvalidCode:       "Invalid referral code",
	KeyReferralCodeNotFound:      "Referral code not found",
	KeyReferralSelf:              "You cannot use your own referral code",
	KeyReferralAlreadyReferred:   "A referral code has already been used for this account",
	KeyReferralNotFound:          "Referral record not found",
	KeyReferralAlreadyCompleted:  "This referral reward has already been claimed",
	KeyReferralExpired:           "This referral has expired",
	KeyReferralPurchaseRequired:  "The reward is granted after the invited user subscribes",
	KeyReferralCodeGenerated:     "Your referral code is ready",
	KeyReferralProcessed:         "Referral code applied",
	KeyReferralRewardGranted:     "Referral reward granted: %d days",
	KeyReferralRewardPending:     "Referral completed, the %d-day reward will be applied shortly",
	KeyReferralNotificationTitle: "Referral Reward",
	KeyReferralNotificationBody:  "Someone you invited subscribed! You earned %d free days",

	KeyErrorInternal:       "Something went wrong, please try again",
	KeyErrorInvalidRequest: "Invalid request",
	KeyErrorUnauthorized:   "Could not verify your session",
	KeyErrorTooMany:        "Too many requests, please wait a moment",
	KeyErrorInstallation:   "Installation id is required",
}
