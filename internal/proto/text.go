package proto

// User-facing strings. The relay's clients are Persian-speaking, so the
// protocol texts are too.

// DefaultUsername is assigned when register carries no username.
const DefaultUsername = "کاربر"

const (
	TextInvalidFormat   = "پیام نامعتبر. لطفاً JSON معتبر ارسال کنید."
	TextRateLimited     = "تعداد پیام‌ها بیش از حد مجاز است. کمی صبر کنید."
	TextRoomNameTooLong = "نام اتاق بیش از حد طولانی است."
)

// WelcomeText greets a freshly registered user.
func WelcomeText(username string) string {
	return "ثبت نام موفق! خوش آمدی " + username
}

// RoomChangedText confirms a room switch.
func RoomChangedText(room string) string {
	return "به اتاق " + room + " خوش آمدی"
}
