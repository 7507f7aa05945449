package dispatch

import "fmt"

// User-facing texts. The bot speaks Russian; keep the wording stable, it
// is part of the product surface.
const (
	textPrivateChat = "Добавьте меня в группу и используйте /start"

	textAdminOnlySubscribe   = "❌ Только администратор может подписывать группу."
	textAdminOnlyUnsubscribe = "❌ Только администратор может отписать группу."
	textAdminOnlyTime        = "❌ Только администратор может изменить время."

	textNeedStart     = "Сначала подпишите группу с помощью /start"
	textJoinNeedStart = "❗Группа не подписана. Сначала используйте /start"

	textWelcome = "💜 Здравствуйте!\n" +
		"Я — 🤖 бот Envio — ваш личный напоминатель от курсов английского языка Envio.\n" +
		"📌 Моя задача: напоминать вам о выполнении домашнего задания, чтобы ваш английский становился всё лучше с каждым днём!\n" +
		"Нажмите /join чтобы подписаться\n"

	textUnsubscribed = "❌ Группа отписана от напоминаний."

	textNoUsername = "❗ У вас не задан username!"

	textBadTime = "❌ Ошибка: Неправильный формат времени\n" +
		"Формат: ЧЧ:ММ (например: 08:00, 21:45)"

	textHelp = "📋 Команды:\n" +
		"/start — подписать группу\n" +
		"/join — подписаться на упоминания\n" +
		"/time — установить время\n" +
		"/stop — отписаться\n" +
		"/status — статус\n" +
		"/help — помощь"
)

func textJoined(fullName, username string) string {
	return fmt.Sprintf("👋 %s, вы подписались на напоминания!\n✅ Ваш username: @%s", fullName, username)
}

func textTimePrompt(hour, minute int, nowHHMM string) string {
	return fmt.Sprintf(
		"⏰ Текущее время отправки: %02d:%02d\n"+
			"🕐 Сейчас: %s\n"+
			"📝 Введите новое время в формате ЧЧ:ММ (например: 06:30)",
		hour, minute, nowHHMM)
}

func textTimeSet(hour, minute, hoursLeft, minutesLeft int) string {
	return fmt.Sprintf(
		"✅ Отлично! Время напоминания установлено на %02d:%02d ⏰\n\n"+
			"⏳ До следующего сообщения осталось примерно %d ч. %d мин.\n\n"+
			"💬 Я пришлю напоминание точно в это время каждый день!",
		hour, minute, hoursLeft, minutesLeft)
}

func textStatus(total int, nowHHMMSS string) string {
	return fmt.Sprintf("📊 Подписанных групп: %d\n🕒 Сейчас: %s", total, nowHHMMSS)
}

func textStatusChat(hour, minute, memberCount int) string {
	return fmt.Sprintf("\n⏰ Время: %02d:%02d\n👥 Подписанных на упоминания: %d", hour, minute, memberCount)
}
