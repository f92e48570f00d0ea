package bot

// Reply keyboard button labels. The router matches message text against
// these, so they must stay identical to what the menus render.
const (
	btnRegisterMechanic = "👨‍🔧 ثبت‌نام مکانیک"
	btnRegisterCustomer = "👤 ثبت‌نام مشتری"
	btnRegisterAgain    = "🔄 ثبت‌نام مجدد"
	btnRegistrationInfo = "⏳ وضعیت ثبت‌نام"
	btnNewOrder         = "📝 ثبت سفارش"
	btnMyOrders         = "📦 سفارشات من"
	btnSupport          = "📞 پشتیبانی"
)

// Inline callback uniques.
const (
	cbPhotoYes     = "photo_yes"
	cbPhotoNo      = "photo_no"
	cbAddItem      = "add_item"
	cbFinishOrder  = "finish_order"
	cbFinalConfirm = "final_confirm"
	cbFinalCancel  = "final_cancel"
	cbOrderConfirm = "order_confirm"
	cbOrderCancel  = "order_cancel"
	cbPayConfirm   = "confirm_payment"
	cbPayCancel    = "cancel_order"
)

const (
	msgGreeting = "🔧 سلام! به ربات پرنام یدک خوش آمدید.\n\n" +
		"از طریق این ربات می‌توانید قطعات خودرو سفارش دهید."
	msgMenuPrompt = "لطفاً یکی از گزینه‌های زیر را انتخاب کنید:"

	msgAskFullName   = "👨‍🔧 ثبت‌نام مکانیک\n\nلطفاً نام و نام خانوادگی خود را وارد کنید:"
	msgAskMobile     = "📱 لطفاً شماره موبایل خود را وارد کنید:"
	msgAskCardNumber = "💳 لطفاً شماره کارت بانکی خود را وارد کنید:"
	msgAskSheba      = "🏦 لطفاً شماره شبا خود را وارد کنید:"
	msgAskAddress    = "📍 لطفاً آدرس مغازه خود را وارد کنید:"
	msgAskLicense    = "📄 لطفاً تصویر جواز کسب خود را ارسال کنید:"

	msgAskFirstName  = "👤 ثبت‌نام مشتری\n\nلطفاً نام خود را وارد کنید:"
	msgAskPhone      = "📱 لطفاً شماره تلفن خود را وارد کنید:"
	msgAskProvince   = "🗺 لطفاً استان محل سکونت خود را وارد کنید:"
	msgAskCity       = "🏙 لطفاً شهر خود را وارد کنید:"
	msgAskPostalCode = "📮 لطفاً کد پستی خود را وارد کنید:"
	msgAskHomeAddr   = "📍 لطفاً آدرس خود را وارد کنید:"

	msgMechanicPending = "✅ درخواست ثبت‌نام شما ارسال شد.\n\n" +
		"پس از بررسی توسط مدیریت، نتیجه به شما اطلاع داده می‌شود."
	msgCustomerWelcome = "🎉 ثبت‌نام شما با موفقیت انجام شد! به خانواده پرنام یدک خوش آمدید."
	msgAlreadyPending  = "⏳ درخواست ثبت‌نام شما در حال بررسی است. لطفاً شکیبا باشید."
	msgAlreadyApproved = "✅ شما قبلاً ثبت‌نام کرده‌اید."
	msgNotApproved     = "❌ برای ثبت سفارش ابتدا باید ثبت‌نام شما تایید شود."

	msgAskProduct  = "📝 لطفاً نام قطعه مورد نظر را وارد کنید:"
	msgAskQuantity = "🔢 لطفاً تعداد مورد نیاز را وارد کنید:"
	msgAskPhoto    = "📷 آیا می‌خواهید برای این قطعه عکس ارسال کنید؟"
	msgSendPhoto   = "📷 لطفاً عکس قطعه را ارسال کنید:"
	msgItemAdded   = "✅ قطعه به سفارش اضافه شد. ادامه می‌دهید؟"
	msgItemInvalid = "⚠️ قطعه فعلی ناقص بود و ثبت نشد."

	msgBadQuantity = "❌ تعداد باید عدد مثبت باشد. لطفاً دوباره وارد کنید:"
	msgNotNumber   = "❌ لطفاً یک عدد معتبر وارد کنید:"

	msgOrderSummaryHead = "📋 خلاصه سفارش شما:"
	msgOrderEmpty       = "❌ هیچ قطعه‌ای ثبت نشده است. سفارش لغو شد."
	msgOrderCancelled   = "❌ ثبت سفارش لغو شد."
	msgOrderSubmitFail  = "❌ خطا در ثبت سفارش. لطفاً بعداً دوباره تلاش کنید."

	msgReceiptOnly = "❌ لطفاً فقط عکس رسید پرداخت را ارسال کنید.\n\n" +
		"تا زمان بررسی رسید، امکان استفاده از سایر بخش‌ها وجود ندارد."
	msgReceiptReceived = "✅ رسید پرداخت شما دریافت شد و در حال بررسی است."
	msgReceiptFail     = "❌ خطا در ارسال رسید. لطفاً دوباره تلاش کنید."

	msgDecisionSaved  = "✅ تایید شما ثبت شد. جزئیات پرداخت به زودی ارسال می‌شود."
	msgDecisionCancel = "❌ سفارش لغو شد."
	msgDecisionFail   = "❌ خطا در ثبت پاسخ شما. لطفاً دوباره تلاش کنید."

	msgPayConfirmed = "✅ سفارش شما تایید شد.\nشناسه سفارش: %d\n" +
		"جزئیات پرداخت به زودی برای شما ارسال خواهد شد."
	msgPayCancelled   = "❌ سفارش لغو شد."
	msgPayConfirmFail = "❌ خطا در تایید سفارش."
	msgPayCancelFail  = "❌ خطا در لغو سفارش."

	msgNoOrders = "📭 شما هنوز سفارشی ثبت نکرده‌اید."

	msgSupport = "📞 پشتیبانی پرنام یدک\n\n" +
		"آقای قادری: 09185296330\n" +
		"آقای صیدی: 09960449631\n\n" +
		"ساعت پاسخگویی: شنبه تا پنجشنبه، ۹ تا ۱۸"

	msgPanelDown = "⚠️ سامانه موقتاً در دسترس نیست. لطفاً چند دقیقه دیگر تلاش کنید."
	msgUnknown   = "🤔 متوجه نشدم. لطفاً از دکمه‌های منو استفاده کنید."
)

